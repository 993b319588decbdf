package frame

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"

	"github.com/KaramelBytes/corrgraph-cli/internal/utils"
)

// WriteParquet writes the frame as a single gzip-compressed Parquet row group.
func (f *Frame) WriteParquet(w io.Writer) error {
	rec := f.Record()
	defer rec.Release()

	fw, err := pqarrow.NewFileWriter(
		rec.Schema(),
		w,
		parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Gzip),
			parquet.WithCompressionLevel(gzip.BestCompression)),
		pqarrow.DefaultWriterProps(),
	)
	if err != nil {
		return fmt.Errorf("creating parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("writing frame: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("closing parquet writer: %w", err)
	}
	return nil
}

// ExportParquet writes the frame to path atomically.
func (f *Frame) ExportParquet(path string) error {
	if err := utils.WriteFileAtomic(path, f.WriteParquet); err != nil {
		return fmt.Errorf("export frame to %s: %w", path, err)
	}
	return nil
}
