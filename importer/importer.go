package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/itemstore/core"
	"github.com/poiesic/itemstore/storage"
)

// Column names expected in the CSV header.
const (
	ColumnItemName = "item_name"
	ColumnPrice    = "price"
	ColumnQuantity = "quantity"
)

// Importer saves CSV rows through an item repository.
type Importer struct {
	repo           storage.ItemRepository
	pool           *ants.Pool
	logger         *slog.Logger
	maxNameLength  int
	progressWriter io.Writer
	reportInterval int
	maxAttempts    int
	retryDelay     time.Duration
}

// Option configures an Importer.
type Option func(*Importer) error

// WithPoolSize sets the number of concurrent saves.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(imp *Importer) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if imp.pool != nil {
			imp.pool.Release()
		}
		imp.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(imp *Importer) error {
		if logger == nil {
			logger = slog.Default()
		}
		imp.logger = logger
		return nil
	}
}

// WithMaxNameLength sets the name length limit applied before saving.
// Zero disables the check.
func WithMaxNameLength(n int) Option {
	return func(imp *Importer) error {
		imp.maxNameLength = n
		return nil
	}
}

// WithProgress writes a progress line to w every interval rows.
func WithProgress(w io.Writer, interval int) Option {
	return func(imp *Importer) error {
		imp.progressWriter = w
		imp.reportInterval = interval
		return nil
	}
}

// WithRetry retries failed saves up to maxAttempts times in total, waiting
// baseDelay before the first retry and doubling it after each one.
// Default is a single attempt.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(imp *Importer) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		imp.maxAttempts = maxAttempts
		imp.retryDelay = baseDelay
		return nil
	}
}

// New creates an Importer writing to repo. Call Release when done.
func New(repo storage.ItemRepository, opts ...Option) (*Importer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	imp := &Importer{
		repo:           repo,
		pool:           pool,
		logger:         slog.Default(),
		maxNameLength:  core.DefaultMaxNameLength,
		reportInterval: 100,
		maxAttempts:    1,
		retryDelay:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		if optErr := opt(imp); optErr != nil {
			imp.Release()
			return nil, optErr
		}
	}
	return imp, nil
}

// Release stops the worker pool.
func (imp *Importer) Release() {
	if imp.pool != nil {
		imp.pool.Release()
	}
}

// Result summarizes an import.
type Result struct {
	// Imported counts rows saved.
	Imported int
	// IDs holds the identifiers assigned to saved rows, in input order.
	IDs []core.ID
	// Errors holds one entry per rejected row, ordered by line.
	Errors []*RowError
}

// Failed returns the number of rejected rows.
func (r *Result) Failed() int {
	return len(r.Errors)
}

type row struct {
	line int
	item *core.Item
}

// ImportFile imports the CSV file at path.
func (imp *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return imp.Import(ctx, f)
}

// Import reads CSV from r and saves every valid row. Header problems and
// malformed CSV are returned as errors. Row level failures end up in the
// Result. A cancelled context stops scheduling further rows.
func (imp *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	rows, result, err := imp.parse(r)
	if err != nil {
		return nil, err
	}

	var progress *ProgressTracker
	if imp.progressWriter != nil {
		progress = NewProgressTracker(imp.progressWriter, len(rows)+len(result.Errors), imp.reportInterval)
		progress.Start()
		progress.Increment(len(result.Errors))
	}

	saved := make([]core.ID, len(rows))
	ok := make([]bool, len(rows))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	fail := func(line int, err error) {
		mu.Lock()
		result.Errors = append(result.Errors, &RowError{Line: line, Err: err})
		mu.Unlock()
	}

	for i, rw := range rows {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := imp.pool.Submit(func() {
			defer wg.Done()
			if progress != nil {
				defer progress.Increment(1)
			}

			item, err := imp.save(ctx, rw.item)
			if err != nil {
				imp.logger.Debug("item save failed", "line", rw.line, "error", err)
				fail(rw.line, err)
				return
			}
			saved[i] = item.Id
			ok[i] = true
		})
		if submitErr != nil {
			wg.Done()
			fail(rw.line, submitErr)
		}
	}
	wg.Wait()

	if progress != nil {
		progress.Finish()
	}

	for i := range rows {
		if ok[i] {
			result.IDs = append(result.IDs, saved[i])
		}
	}
	result.Imported = len(result.IDs)
	slices.SortFunc(result.Errors, func(a, b *RowError) int {
		return a.Line - b.Line
	})

	imp.logger.Info("import finished",
		"imported", result.Imported,
		"failed", result.Failed())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (imp *Importer) save(ctx context.Context, item *core.Item) (*core.Item, error) {
	var saved *core.Item
	err := RetryWithBackoff(ctx, func() error {
		s, err := imp.repo.Save(ctx, item)
		if err != nil {
			if !retryable(err) {
				return Permanent(err)
			}
			return err
		}
		saved = s
		return nil
	}, imp.maxAttempts, imp.retryDelay)
	return saved, err
}

// retryable reports whether a failed save may succeed if repeated.
func retryable(err error) bool {
	switch {
	case errors.Is(err, storage.ErrStorageClosed),
		errors.Is(err, storage.ErrNilItem),
		errors.Is(err, core.ErrInvalidItem),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}

// parse reads the whole input. Rows that fail to parse or validate are
// recorded in the returned Result.
func (imp *Importer) parse(r io.Reader) ([]row, *Result, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Result{}, nil
		}
		return nil, nil, err
	}
	columns, err := columnIndexes(header)
	if err != nil {
		return nil, nil, err
	}

	result := &Result{}
	var rows []row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				result.Errors = append(result.Errors, &RowError{Line: parseErr.StartLine, Err: fmt.Errorf("%w: %w", ErrInvalidRow, err)})
				continue
			}
			return nil, nil, err
		}
		line, _ := reader.FieldPos(0)

		item, err := parseItem(record, columns)
		if err == nil {
			err = core.ValidateItem(item, imp.maxNameLength)
		}
		if err != nil {
			result.Errors = append(result.Errors, &RowError{Line: line, Err: err})
			continue
		}
		rows = append(rows, row{line: line, item: item})
	}
	return rows, result, nil
}

type columnIndex struct {
	name, price, quantity int
}

func columnIndexes(header []string) (columnIndex, error) {
	idx := columnIndex{name: -1, price: -1, quantity: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case ColumnItemName:
			idx.name = i
		case ColumnPrice:
			idx.price = i
		case ColumnQuantity:
			idx.quantity = i
		}
	}
	switch {
	case idx.name < 0:
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnItemName)
	case idx.price < 0:
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnPrice)
	case idx.quantity < 0:
		return idx, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnQuantity)
	}
	return idx, nil
}

func parseItem(record []string, columns columnIndex) (*core.Item, error) {
	price, err := strconv.Atoi(strings.TrimSpace(record[columns.price]))
	if err != nil {
		return nil, fmt.Errorf("%w: price %q", ErrInvalidRow, record[columns.price])
	}
	quantity, err := strconv.Atoi(strings.TrimSpace(record[columns.quantity]))
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", ErrInvalidRow, record[columns.quantity])
	}
	return &core.Item{
		ItemName: record[columns.name],
		Price:    price,
		Quantity: quantity,
	}, nil
}
