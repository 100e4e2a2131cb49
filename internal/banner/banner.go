// Package banner prints the console messages shown when the server starts and stops.
package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/f4ah6o/devserve-go/internal/config"
	"github.com/fatih/color"
)

const ruleWidth = 50

var (
	heading = color.New(color.FgCyan, color.Bold)
	info    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	stop    = color.New(color.FgRed)
)

// Startup writes the startup banner for cfg to w.
func Startup(w io.Writer, cfg config.Config) {
	rule := strings.Repeat("=", ruleWidth)
	url := cfg.URL()

	heading.Fprintf(w, "🚀 %s\n", cfg.Name)
	fmt.Fprintln(w, rule)
	info.Fprintf(w, "📁 Serving files from: %s\n", cfg.Root)
	info.Fprintf(w, "🌐 Server running at: %s\n", url)
	stop.Fprintln(w, "🔴 This is the DEVELOPMENT environment")
	fmt.Fprintf(w, "📖 Open %s in your browser\n", url)
	warn.Fprintln(w, "⏹️  Press Ctrl+C to stop the server")
	fmt.Fprintln(w, rule)
}

// ShuttingDown reports that an interrupt was received.
func ShuttingDown(w io.Writer) {
	stop.Fprintln(w, "\n🛑 Shutting down development server...")
}

// Closed confirms the listener is gone.
func Closed(w io.Writer) {
	info.Fprintln(w, "✅ Server closed")
}
