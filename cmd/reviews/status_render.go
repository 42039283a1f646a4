package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/joseph-ayodele/reviews-extractor/internal/orchestrator"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const statusLabelWidth = 12

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	base := fmt.Sprintf("%-*s [%s]", statusLabelWidth, label+":", statusKindLabel(kind))
	if message != "" {
		base += " " + message
	}
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WAIT"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

// describeSnapshot turns a loop transition into a status line.
func describeSnapshot(s orchestrator.Snapshot) (statusKind, string) {
	switch s.State {
	case orchestrator.StateSubmitting:
		return statusInfo, "submitting location " + s.LocationID
	case orchestrator.StateAwaitingFirstWindow:
		return statusInfo, "batch " + s.BatchID + " accepted, waiting before the first poll"
	case orchestrator.StatePolling:
		if s.Status == "" {
			return statusInfo, fmt.Sprintf("polling batch %s (attempt %d)", s.BatchID, s.Polls+1)
		}
		return statusWarn, fmt.Sprintf("batch %s is %s", s.BatchID, s.Status)
	case orchestrator.StateReady:
		return statusOK, fmt.Sprintf("%s ready with %d reviews", s.Artifact.FileName, s.Artifact.ReviewCount)
	case orchestrator.StateError:
		return statusError, s.Message
	default:
		return statusInfo, "idle"
	}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
