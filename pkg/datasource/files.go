package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/nemanja-m/gomar/pkg/core"
)

// FilesSource is the name of the driver over lines of local text files.
const FilesSource = "files"

// FilesOptions configures the files driver. Paths are doublestar glob
// patterns. Files is filled in at split time so that every worker reads
// exactly the file list the producer counted.
type FilesOptions struct {
	Paths []string `json:"paths"`
	Files []string `json:"files,omitempty"`
}

type filesDriver struct{}

func init() {
	mustRegister(FilesSource, filesDriver{})
}

func (d filesDriver) Count(_ context.Context, options json.RawMessage) (int64, error) {
	files, err := d.resolveFiles(options)
	if err != nil {
		return 0, err
	}
	return countAll(files)
}

func (d filesDriver) Split(_ context.Context, options json.RawMessage, n int) ([]Shard, error) {
	files, err := d.resolveFiles(options)
	if err != nil {
		return nil, err
	}
	total, err := countAll(files)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, &core.EmptySourceError{Source: FilesSource}
	}

	resolved, err := json.Marshal(FilesOptions{Files: files})
	if err != nil {
		return nil, err
	}
	shards := RangeShards(total, n)
	for i := range shards {
		shards[i].Options = resolved
	}
	return shards, nil
}

func (d filesDriver) Open(_ context.Context, shard Shard) (core.DataSource, error) {
	files, err := d.resolveFiles(shard.Options)
	if err != nil {
		return nil, err
	}
	return &filesSource{files: files, offset: shard.Offset, limit: shard.Limit}, nil
}

func (filesDriver) resolveFiles(options json.RawMessage) ([]string, error) {
	var opts FilesOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, err
	}
	if len(opts.Files) > 0 {
		return opts.Files, nil
	}
	if len(opts.Paths) == 0 {
		return nil, &core.ConfigurationError{Component: "source", Reason: "files source requires at least one path"}
	}
	return FindFiles(opts.Paths)
}

func countAll(files []string) (int64, error) {
	var total int64
	for _, file := range files {
		n, err := CountLines(file)
		if err != nil {
			return 0, fmt.Errorf("failed to count lines in %s: %w", file, err)
		}
		total += n
	}
	return total, nil
}

var errStopScan = errors.New("stop scan")

type filesSource struct {
	files  []string
	offset int64
	limit  int64
}

// Records streams the lines in [offset, offset+limit) of the concatenated
// files as {file, line, text} records.
func (s *filesSource) Records(ctx context.Context) iter.Seq2[core.Record, error] {
	return func(yield func(core.Record, error) bool) {
		var position, emitted int64
		for _, file := range s.files {
			if emitted >= s.limit {
				return
			}
			var stop error
			err := ScanLines(file, func(number int64, text string) bool {
				position++
				if position <= s.offset {
					return true
				}
				if err := ctx.Err(); err != nil {
					stop = err
					return false
				}
				if emitted >= s.limit {
					stop = errStopScan
					return false
				}
				emitted++
				if !yield(core.Record{"file": file, "line": number, "text": text}, nil) {
					stop = errStopScan
					return false
				}
				return true
			})
			if errors.Is(stop, errStopScan) {
				return
			}
			if stop != nil {
				yield(nil, stop)
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
		}
	}
}

func (s *filesSource) Close() error {
	return nil
}
