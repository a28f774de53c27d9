package statistics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Statistics contains all counters for one batch conversion run.
type Statistics struct {
	FilesFound     int64
	FilesConverted int64
	FilesResized   int64
	FilesFailed    int64
	FilesPlanned   int64

	BytesOriginal  int64
	BytesConverted int64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	Errors []StatError

	mutex sync.RWMutex
}

// StatError represents a per-file failure recorded during processing.
type StatError struct {
	FilePath  string
	Kind      string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime: time.Now(),
		Errors:    make([]StatError, 0),
	}
}

// SetFilesFound sets the number of candidate files discovered by the scan.
func (s *Statistics) SetFilesFound(n int64) {
	atomic.StoreInt64(&s.FilesFound, n)
}

// IncrementFilesConverted increases the count of converted files by 1.
func (s *Statistics) IncrementFilesConverted() {
	atomic.AddInt64(&s.FilesConverted, 1)
}

// IncrementFilesResized increases the count of downscaled files by 1.
func (s *Statistics) IncrementFilesResized() {
	atomic.AddInt64(&s.FilesResized, 1)
}

// IncrementFilesFailed increases the count of failed files by 1.
func (s *Statistics) IncrementFilesFailed() {
	atomic.AddInt64(&s.FilesFailed, 1)
}

// IncrementFilesPlanned increases the count of dry-run candidates by 1.
func (s *Statistics) IncrementFilesPlanned() {
	atomic.AddInt64(&s.FilesPlanned, 1)
}

// AddBytes records the source and output byte sizes of a converted file.
func (s *Statistics) AddBytes(original, converted int64) {
	atomic.AddInt64(&s.BytesOriginal, original)
	atomic.AddInt64(&s.BytesConverted, converted)
}

// AddError records a per-file failure.
func (s *Statistics) AddError(filePath, kind, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Kind:      kind,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates the run duration.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
}

// TotalPercentageSaved returns the overall savings across all converted
// files, or 0 when nothing was converted.
func (s *Statistics) TotalPercentageSaved() float64 {
	original := atomic.LoadInt64(&s.BytesOriginal)
	converted := atomic.LoadInt64(&s.BytesConverted)
	if original == 0 {
		return 0
	}
	return float64(original-converted) * 100 / float64(original)
}

// GetSummary returns a formatted summary of the batch run. It is safe to
// call while another goroutine finalizes the statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	duration := s.Duration
	s.mutex.RUnlock()

	original := atomic.LoadInt64(&s.BytesOriginal)
	converted := atomic.LoadInt64(&s.BytesConverted)
	saved := original - converted
	if saved < 0 {
		saved = 0
	}

	return fmt.Sprintf(`WebP Optimizer Summary:

Files:
		Found: %d
		Converted: %d
		Resized: %d
		Failed: %d
		Planned (dry run): %d

Size:
		Original: %s
		Converted: %s
		Saved: %s (%.1f%%)

Duration: %v`,
		atomic.LoadInt64(&s.FilesFound),
		atomic.LoadInt64(&s.FilesConverted),
		atomic.LoadInt64(&s.FilesResized),
		atomic.LoadInt64(&s.FilesFailed),
		atomic.LoadInt64(&s.FilesPlanned),
		humanize.IBytes(uint64(original)),
		humanize.IBytes(uint64(converted)),
		humanize.IBytes(uint64(saved)),
		s.TotalPercentageSaved(),
		duration)
}

// GetErrorSummary returns a summary of per-file failures.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Kind,
			err.FilePath,
			err.Error)
	}
	return result
}

// GetFilesConverted returns the total number of files converted.
func (s *Statistics) GetFilesConverted() int64 {
	return atomic.LoadInt64(&s.FilesConverted)
}

// GetFilesFailed returns the total number of files that failed.
func (s *Statistics) GetFilesFailed() int64 {
	return atomic.LoadInt64(&s.FilesFailed)
}
