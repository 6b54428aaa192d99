// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

// Entry is one member of a generated tarball
type Entry struct {
	Name     string
	Body     string
	Mode     int64
	Linkname string // Makes the entry a symlink unless Type says otherwise
	Dir      bool
	Type     byte // Overrides the inferred tar type flag
}

// TarGz returns a gzip-compressed tarball holding entries, in order
func TarGz(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: e.Mode}
		switch {
		case e.Type != 0:
			hdr.Typeflag = e.Type
			hdr.Linkname = e.Linkname
		case e.Dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
			hdr.Mode = 0o777
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}

		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.Body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// HadoopRelease returns a minimal release tarball for version with the
// layout the installer expects under hadoop-<version>/
func HadoopRelease(t testing.TB, version string) []byte {
	t.Helper()

	root := "hadoop-" + version + "/"
	return TarGz(t,
		Entry{Name: root, Dir: true},
		Entry{Name: root + "bin/", Dir: true},
		Entry{Name: root + "bin/hadoop", Body: "#!/bin/sh\necho Hadoop " + version + "\n", Mode: 0o755},
		Entry{Name: root + "bin/hdfs", Body: "#!/bin/sh\n", Mode: 0o755},
		Entry{Name: root + "sbin/start-dfs.sh", Body: "#!/bin/sh\n", Mode: 0o755},
		Entry{Name: root + "sbin/start-yarn.sh", Body: "#!/bin/sh\n", Mode: 0o755},
		Entry{Name: root + "etc/hadoop/hadoop-env.sh", Body: "export JAVA_HOME=${JAVA_HOME}\n"},
		Entry{Name: root + "etc/hadoop/core-site.xml", Body: "<configuration>\n</configuration>\n"},
		Entry{Name: root + "lib/native/libhadoop.so", Linkname: "libhadoop.so.1.0.0"},
		Entry{Name: root + "lib/native/libhadoop.so.1.0.0", Body: "elf"},
	)
}
