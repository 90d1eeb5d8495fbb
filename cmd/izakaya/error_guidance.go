package main

import (
	"context"
	"errors"
	"net"
	"os"

	"izakaya/internal/api"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == "too_large" {
			lines = append(lines, "hint: upload fewer or smaller photos, or raise uploads.max_upload_bytes on the server.")
		}
		if apiErr.Code == "" {
			lines = append(lines, "hint: verify IZAKAYA_API_URL points to an izakaya server.")
		}
		if apiErr.Status >= 500 {
			lines = append(lines, "hint: server returned an internal error; check server logs for details.")
		}
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: request timed out; check server health or increase IZAKAYA_HTTP_TIMEOUT.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure an izakaya server is running at IZAKAYA_API_URL.",
			"hint: start local server manually with: izakaya srv",
			"hint: you can increase IZAKAYA_HTTP_TIMEOUT for slower environments.",
		)
		return uniqueLines(lines)
	}

	if errors.Is(err, os.ErrNotExist) {
		lines = append(lines, "hint: check the photo or seed file path.")
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
