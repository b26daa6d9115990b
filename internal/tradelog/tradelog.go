// Package tradelog journals submitted orders and run outcomes as JSON lines,
// one file per New York trading day.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

type OrderEntry struct {
	Time       string `json:"time"`
	Env        string `json:"env"`
	Tool       string `json:"tool,omitempty"`
	Symbol     string `json:"symbol"`
	Asset      string `json:"asset"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Class      string `json:"class,omitempty"`
	Qty        string `json:"qty"`
	LimitPrice string `json:"limit_price,omitempty"`
	StopPrice  string `json:"stop_price,omitempty"`
	OrderID    string `json:"order_id,omitempty"`
	Status     string `json:"status,omitempty"`
	Error      string `json:"error,omitempty"`
}

type RunEntry struct {
	Time       string `json:"time"`
	Run        int    `json:"run"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Steps      int    `json:"steps"`
	Summary    string `json:"summary,omitempty"`
}

// Journal writes under Dir. A nil *Journal discards everything.
type Journal struct {
	dir string
	loc *time.Location
	now func() time.Time

	mu sync.Mutex
}

func New(dir string) *Journal {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*3600)
	}
	if dir == "" {
		dir = "logs"
	}
	return &Journal{dir: dir, loc: loc, now: time.Now}
}

func (j *Journal) Dir() string {
	return j.dir
}

func (j *Journal) ordersPath(t time.Time) string {
	return filepath.Join(j.dir, "orders", t.Format("2006-01-02")+".txt")
}

func (j *Journal) runsPath(t time.Time) string {
	return filepath.Join(j.dir, "runs", t.Format("2006-01-02")+".txt")
}

func (j *Journal) AppendOrder(e OrderEntry) error {
	if j == nil {
		return nil
	}
	now := j.now().In(j.loc)
	e.Time = now.Format(timeLayout)
	return j.append(j.ordersPath(now), e)
}

func (j *Journal) AppendRun(e RunEntry) error {
	if j == nil {
		return nil
	}
	now := j.now().In(j.loc)
	e.Time = now.Format(timeLayout)
	return j.append(j.runsPath(now), e)
}

func (j *Journal) append(p string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files last modified before the retention
// window and removes the originals.
func (j *Journal) CompressOlder(retentionDays int) error {
	if j == nil || retentionDays <= 0 {
		return nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)

	j.mu.Lock()
	defer j.mu.Unlock()
	return filepath.WalkDir(j.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		// an earlier pass already compressed it
		if _, err := os.Stat(gz); err == nil {
			_ = os.Remove(p)
			return nil
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		return os.Remove(p)
	})
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
