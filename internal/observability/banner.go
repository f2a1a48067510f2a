package observability

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var startTime = time.Now()

const (
	colorReset    = "\033[0m"
	colorPurple   = "\033[35m"
	colorNeonCyan = "\033[96m"
	colorNeonMag  = "\033[95m"
)

// termMu serializes all terminal output so the status line and log writes
// never interleave.
var termMu sync.Mutex

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

type termWriter struct {
	w io.Writer
}

func (tw termWriter) Write(p []byte) (n int, err error) {
	termMu.Lock()
	defer termMu.Unlock()
	return tw.w.Write(p)
}

// NewTermWriter returns an io.Writer suitable for log.SetOutput().
func NewTermWriter() io.Writer {
	return termWriter{w: os.Stderr}
}

func PrintBanner() {
	banner := `
 _    _            _    _                     _
| |  | |          | |  | |                   | |
| |  | | ___  _ __| | _| |__   ___ _ __   ___| |__
| |/\| |/ _ \| '__| |/ / '_ \ / _ \ '_ \ / __| '_ \
\  /\  / (_) | |  |   <| |_) |  __/ | | | (__| | | |
 \/  \/ \___/|_|  |_|\_\_.__/ \___|_| |_|\___|_| |_|

        >> PLAN . REVIEW . DELIVER <<
`
	if !isTerminal() {
		fmt.Println(strings.TrimSpace(banner))
		return
	}

	width := termWidth()
	for _, l := range strings.Split(banner, "\n") {
		padding := (width - len(l)) / 2
		if padding < 0 {
			padding = 0
		}
		fmt.Printf("%s%s%s\n", strings.Repeat(" ", padding), colorNeonCyan+l, colorReset)
	}
}

// StatusLine renders one line of run counters and resource usage.
func StatusLine(s Snapshot) string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	pulse, pulseColor := "HEALTHY", colorNeonCyan
	if delta := time.Since(s.LastHeartbeat); delta >= 90*time.Second {
		pulse, pulseColor = "OFFLINE", colorNeonMag
	} else if delta >= 40*time.Second {
		pulse, pulseColor = "LAGGING", colorPurple
	}

	plan := s.ActivePlan
	if plan == "" {
		plan = "waiting..."
	}
	if len(plan) > 12 {
		plan = plan[:8] + "..."
	}

	return fmt.Sprintf("[%s] %s%-7s%s | %-7s %s | runs %d ok %d failed %d review %d | up %v | %.1fMB",
		s.LastHeartbeat.Format("15:04:05"),
		pulseColor, pulse, colorReset,
		s.Phase, plan,
		s.Started, s.Completed, s.Failed, s.Paused,
		time.Since(startTime).Round(time.Second),
		float64(m.Alloc)/1024/1024,
	)
}

// PrintLiveStatus writes the status line when stdout is a terminal.
func PrintLiveStatus() {
	if !isTerminal() {
		return
	}
	line := StatusLine(globalStatus.Snapshot())
	termMu.Lock()
	fmt.Print("\r\033[K" + line)
	termMu.Unlock()
}
