package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads 3-line NORAD TLE format from r and returns element sets in catalog order.
//
// Blank lines are dropped first, then the remaining lines are grouped into
// consecutive (name, line1, line2) triplets, so blank separators never shift the
// grouping. A triplet whose element lines lack the "1 " / "2 " prefixes, or whose
// catalog number is unreadable, is skipped with a warning and parsing continues
// with the next triplet. Lines of any length up to the fetch body limit are read;
// an overlong line is just another malformed line. At most limit sets are
// returned; limit <= 0 returns all of them.
func Parse(r io.Reader, limit int, logger *slog.Logger) ([]ElementSet, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxBodyBytes+1)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var sets []ElementSet
	for i := 0; i+2 < len(lines); i += 3 {
		if limit > 0 && len(sets) >= limit {
			break
		}

		name := strings.TrimSpace(lines[i])
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			continue
		}

		noradID, err := catalogNumber(line1)
		if err != nil {
			logger.Warn("skipping TLE entry with invalid NORAD ID", "name", name, "error", err)
			continue
		}

		set := ElementSet{
			NORADID: noradID,
			Name:    name,
			Line1:   line1,
			Line2:   line2,
		}

		// Epoch lives in line1 cols 19-32 (0-indexed: 18..32).
		if len(line1) >= 32 {
			epochStr := strings.TrimSpace(line1[18:32])
			if epoch, err := parseEpoch(epochStr); err == nil {
				set.Epoch = epoch
			} else {
				logger.Debug("TLE entry has unreadable epoch", "norad_id", noradID, "epoch_str", epochStr, "error", err)
			}
		}

		sets = append(sets, set)
	}

	return sets, nil
}

// catalogNumber extracts the NORAD ID from line1 cols 3-7 (0-indexed: 2..7).
func catalogNumber(line1 string) (int, error) {
	if len(line1) < 7 {
		return 0, fmt.Errorf("line1 too short for catalog number: %d chars", len(line1))
	}
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return 0, fmt.Errorf("catalog number %q: %w", noradStr, err)
	}
	return noradID, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}

	// dayOfYear is 1-based: day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
