package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
	"github.com/FranksOps/signlead/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"state",
	"state_code",
	"name",
	"summary",
	"location",
	"phone",
	"opening",
	"temperature",
	"signage",
	"revenue",
	"source",
	"discovered",
}

// signageSep joins signage products into one cell.
const signageSep = "; "

// New opens (or creates) a CSV lead file, writing the header row when the
// file is empty.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open %s: %w", filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
	}

	return &csvBackend{
		file: f,
	}, nil
}

func (b *csvBackend) Save(ctx context.Context, l *lead.Lead) error {
	record := []string{
		l.ID,
		l.State,
		l.StateCode,
		l.Name,
		l.Summary,
		l.Location,
		l.Phone,
		l.Opening,
		string(l.Temperature),
		strings.Join(l.Signage, signageSep),
		l.Revenue,
		l.Source,
		l.Discovered.Format(time.RFC3339Nano),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	w.Flush()

	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: write: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*lead.Lead, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*lead.Lead{}, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var matched []*lead.Lead
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		l := fromRecord(record)
		if filter.Match(l) {
			matched = append(matched, l)
		}
	}

	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return filter.Page(matched), nil
}

func fromRecord(record []string) *lead.Lead {
	discovered, _ := time.Parse(time.RFC3339Nano, record[12])
	var signage []string
	if record[9] != "" {
		signage = strings.Split(record[9], signageSep)
	}
	return &lead.Lead{
		ID:          record[0],
		State:       record[1],
		StateCode:   record[2],
		Name:        record[3],
		Summary:     record[4],
		Location:    record[5],
		Phone:       record[6],
		Opening:     record[7],
		Temperature: lead.Temperature(record[8]),
		Signage:     signage,
		Revenue:     record[10],
		Source:      record[11],
		Discovered:  discovered,
	}
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
