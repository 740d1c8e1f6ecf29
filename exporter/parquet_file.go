package exporter

import (
	"os"

	"github.com/xitongsys/parquet-go/source"
)

// localFile adapts an os.File to the parquet source.ParquetFile interface
// so snapshots can be written to and read back from local disk.
type localFile struct {
	path string
	file *os.File
}

func createLocalFile(path string) (source.ParquetFile, error) {
	f := &localFile{path: path}
	return f.Create(path)
}

func openLocalFile(path string) (source.ParquetFile, error) {
	f := &localFile{path: path}
	return f.Open(path)
}

func (lf *localFile) Create(name string) (source.ParquetFile, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &localFile{path: name, file: file}, nil
}

func (lf *localFile) Open(name string) (source.ParquetFile, error) {
	if name == "" {
		name = lf.path
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &localFile{path: name, file: file}, nil
}

func (lf *localFile) Seek(offset int64, whence int) (int64, error) {
	return lf.file.Seek(offset, whence)
}

func (lf *localFile) Read(b []byte) (int, error) {
	return lf.file.Read(b)
}

func (lf *localFile) Write(b []byte) (int, error) {
	return lf.file.Write(b)
}

func (lf *localFile) Close() error {
	if lf.file == nil {
		return nil
	}
	return lf.file.Close()
}
