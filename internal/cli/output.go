// output.go renders a ScanReport as text, JSON or YAML.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/ipsniffer/internal/model"
)

// printReport writes report to w in the given format. The format has been
// validated by config.Resolve.
func printReport(w io.Writer, report model.ScanReport, format string) error {
	switch format {
	case "json":
		return printReportJSON(w, report)
	case "yaml":
		return printReportYAML(w, report)
	default:
		return printReportText(w, report)
	}
}

// printReportText prints one "<port> is open" line per open port, in
// ascending order. Nothing is printed when no port is open.
func printReportText(w io.Writer, report model.ScanReport) error {
	for _, p := range report.OpenPorts {
		if _, err := fmt.Fprintf(w, "%d is open\n", p); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}
	return nil
}

// printReportJSON prints the report as indented JSON.
func printReportJSON(w io.Writer, report model.ScanReport) error {
	if report.OpenPorts == nil {
		report.OpenPorts = []uint16{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// printReportYAML prints the report as a YAML document.
func printReportYAML(w io.Writer, report model.ScanReport) error {
	if report.OpenPorts == nil {
		report.OpenPorts = []uint16{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// FormatPorts converts a port list into a comma-separated string.
// Returns "-" if the list is empty.
//
// Example:
//
//	[22 80 8080] → "22,80,8080"
//	[]           → "-"
func FormatPorts(ports []uint16) string {
	if len(ports) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strconv.FormatUint(uint64(p), 10))
	}
	return strings.Join(parts, ",")
}
