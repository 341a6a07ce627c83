package activity

import (
	"bufio"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// DefaultWindow is the sliding window the token rate is averaged over.
const DefaultWindow = 60 * time.Second

// Monitor derives a tokens-per-second rate from the Claude Code
// transcript files on disk. It is a read-only collaborator: the poller
// never depends on it, the dashboard just displays its rate next to
// the usage numbers.
type Monitor struct {
	dataPath string
	window   time.Duration
}

func NewMonitor(dataPath string) *Monitor {
	return &Monitor{dataPath: dataPath, window: DefaultWindow}
}

// DefaultDataPath locates the local transcript directory, honoring
// CLAUDE_CONFIG_DIR like the CLI does.
func DefaultDataPath() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "projects")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".claude", "projects")
}

// transcriptEntry is the slice of the JSONL schema the rate cares
// about. Everything else on the line is ignored.
type transcriptEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   struct {
		Usage struct {
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message"`
}

// TokensPerSecond scans transcripts touched within the window and
// averages the output tokens generated over it. Malformed lines are
// skipped; an unreadable directory just reads as zero activity.
func (m *Monitor) TokensPerSecond(now time.Time) float64 {
	cutoff := now.Add(-m.window)

	var total int
	err := filepath.WalkDir(m.dataPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			return nil
		}
		total += m.countTokens(path, cutoff, now)
		return nil
	})
	if err != nil {
		log.WithError(err).Debug("scan transcripts")
		return 0
	}
	return float64(total) / m.window.Seconds()
}

func (m *Monitor) countTokens(path string, cutoff, now time.Time) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	// Transcript lines can be very long; allow up to 1MB.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var total int
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry transcriptEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Timestamp.IsZero() || entry.Timestamp.Before(cutoff) || entry.Timestamp.After(now) {
			continue
		}
		total += entry.Message.Usage.OutputTokens
	}
	return total
}
