package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felo/mailtail/internal/source"
)

// deliveryMarker identifies postfix delivery-confirmation lines.
const deliveryMarker = "postfix/smtp["

// ParseDeliveryLog scans a delivery log and returns one Mail per line that
// carries both a recipient address and a 10-character queue ID, in file
// order. Lines that don't fit the shape are skipped, not errors; delivery
// logs are mostly noise.
func ParseDeliveryLog(r source.Lines) ([]Mail, error) {
	var mails []Mail
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return mails, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read delivery log line: %w", err)
		}
		if !strings.Contains(line, deliveryMarker) {
			continue
		}
		to, ok := addressFromLine(line)
		if !ok {
			continue
		}
		id, ok := idFromLine(line)
		if !ok {
			continue
		}
		l := line
		mails = append(mails, Mail{ID: id, To: to, Line: &l})
	}
}

// idFromLine extracts the queue ID as the fourth colon-delimited field.
// Postfix queue IDs are exactly 10 characters; anything else means the
// line split on an unrelated colon.
func idFromLine(line string) (string, bool) {
	parts := strings.SplitN(line, ":", 5)
	if len(parts) < 4 {
		return "", false
	}
	id := strings.TrimSpace(parts[3])
	if len(id) != 10 {
		return "", false
	}
	return id, true
}

// addressFromLine extracts the recipient between the first < and the
// closing >.
func addressFromLine(line string) (string, bool) {
	_, rest, found := strings.Cut(line, "<")
	if !found {
		return "", false
	}
	if i := strings.IndexByte(rest, '<'); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '>'); i >= 0 {
		rest = rest[:i]
	}
	if !strings.Contains(rest, "@") {
		return "", false
	}
	return rest, true
}
