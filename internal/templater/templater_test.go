package templater_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hsetup/internal/config"
	"hsetup/internal/target"
	"hsetup/internal/templater"
)

func resolve(t *testing.T, mutate func(*config.Config)) *target.InstallationTarget {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}

	tgt, err := target.Resolve(cfg, "/usr/lib/jvm/java-8-openjdk-amd64")
	require.NoError(t, err)
	return tgt
}

func byName(files []templater.ConfigFile) map[string]templater.ConfigFile {
	m := make(map[string]templater.ConfigFile, len(files))
	for _, f := range files {
		m[f.Name] = f
	}
	return m
}

func TestRenderDefaults(t *testing.T) {
	t.Parallel()

	files, err := templater.Render(resolve(t, nil))
	require.NoError(t, err)
	require.Len(t, files, len(templater.Documents))

	docs := byName(files)

	core := docs["core-site.xml"]
	assert.Equal(t, "/usr/local/hadoop/etc/hadoop/core-site.xml", core.Path)
	assert.Contains(t, string(core.Content), "<name>fs.defaultFS</name>")
	assert.Contains(t, string(core.Content), "<value>hdfs://localhost:9000</value>")
	assert.Contains(t, string(core.Content), "<value>/usr/local/hadoop/tmp</value>")

	hdfs := string(docs["hdfs-site.xml"].Content)
	assert.Contains(t, hdfs, "<name>dfs.replication</name>")
	assert.Contains(t, hdfs, "<value>1</value>")
	assert.Contains(t, hdfs, "<value>file:/usr/local/hadoop/hadoop_data/hdfs/namenode</value>")
	assert.Contains(t, hdfs, "<value>file:/usr/local/hadoop/hadoop_data/hdfs/datanode</value>")

	assert.Contains(t, string(docs["mapred-site.xml"].Content), "<value>yarn</value>")

	yarn := string(docs["yarn-site.xml"].Content)
	assert.Contains(t, yarn, "<value>mapreduce_shuffle</value>")
	assert.Contains(t, yarn, "org.apache.hadoop.mapred.ShuffleHandler")
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	tgt := resolve(t, nil)

	first, err := templater.Render(tgt)
	require.NoError(t, err)
	second, err := templater.Render(tgt)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRenderEscapesValues(t *testing.T) {
	t.Parallel()

	tgt := resolve(t, func(c *config.Config) {
		c.Hadoop.DefaultFS = "hdfs://a&b:9000"
	})

	files, err := templater.Render(tgt)
	require.NoError(t, err)

	core := string(byName(files)["core-site.xml"].Content)
	assert.Contains(t, core, "hdfs://a&amp;b:9000")
	assert.NotContains(t, core, "a&b")
}

func TestWriteOverwritesExistingFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tgt := resolve(t, func(c *config.Config) {
		c.Hadoop.InstallDir = dir
	})

	existing := filepath.Join(tgt.ConfigDir, "core-site.xml")
	require.NoError(t, os.MkdirAll(tgt.ConfigDir, 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("<configuration><property>stale</property></configuration>"), 0o644))

	files, err := templater.Render(tgt)
	require.NoError(t, err)
	require.NoError(t, templater.Write(files))
	// A second write must leave the same bytes, not duplicates
	require.NoError(t, templater.Write(files))

	for _, f := range files {
		data, err := os.ReadFile(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Content, data, f.Name)
	}

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")
}

func TestWriteRejectsMissingPath(t *testing.T) {
	t.Parallel()

	err := templater.Write([]templater.ConfigFile{{Name: "core-site.xml"}})
	assert.Error(t, err)
}

func TestPinJavaHome(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		existing *string
		want     string
	}{
		{
			name:     "replaces placeholder export",
			existing: ptr("# comment\nexport JAVA_HOME=${JAVA_HOME}\nexport HADOOP_OPTS=\"$HADOOP_OPTS\"\n"),
			want:     "# comment\nexport JAVA_HOME=/opt/jdk\nexport HADOOP_OPTS=\"$HADOOP_OPTS\"\n",
		},
		{
			name:     "appends when absent",
			existing: ptr("# comment\n"),
			want:     "# comment\nexport JAVA_HOME=/opt/jdk\n",
		},
		{
			name: "creates missing script",
			want: "export JAVA_HOME=/opt/jdk\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "etc", "hadoop", "hadoop-env.sh")
			if tt.existing != nil {
				require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
				require.NoError(t, os.WriteFile(path, []byte(*tt.existing), 0o644))
			}

			require.NoError(t, templater.PinJavaHome(path, "/opt/jdk"))
			require.NoError(t, templater.PinJavaHome(path, "/opt/jdk"))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func ptr(s string) *string { return &s }
