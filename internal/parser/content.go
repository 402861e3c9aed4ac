package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/felo/mailtail/internal/source"
)

// contentMarker opens a message in a raw mail dump; the receiving MTA
// writes it into the Received header, followed by the queue ID.
const contentMarker = "ESMTPS id"

var bracketStripper = strings.NewReplacer("<", "", ">", "")

// ParseSubjects scans a raw mail dump (concatenated messages, headers and
// bodies) and returns one Mail per message whose ID, recipient and subject
// could all be found, in file order.
//
// A line containing the marker starts a capture with the line's last
// whitespace-delimited token as the ID. While capturing, the first "To: "
// line sets the recipient and the first "Subject: " line sets the subject;
// once all three are present the record is emitted. A new marker before
// that point restarts the capture and drops the unfinished one, so a
// message missing its To: or Subject: header is silently lost.
func ParseSubjects(r source.Lines) ([]Mail, error) {
	var (
		mails           []Mail
		capturing       bool
		id, to, subject string
	)
	for {
		line, err := r.Next()
		if errors.Is(err, io.EOF) {
			return mails, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read mail content line: %w", err)
		}
		if strings.Contains(line, contentMarker) {
			fields := strings.Fields(line)
			id = fields[len(fields)-1]
			to, subject = "", ""
			capturing = true
		}
		if !capturing {
			continue
		}
		if to == "" && strings.HasPrefix(line, "To: ") {
			to = bracketStripper.Replace(strings.TrimPrefix(line, "To: "))
		}
		if subject == "" && strings.HasPrefix(line, "Subject: ") {
			subject = strings.TrimPrefix(line, "Subject: ")
		}
		if id != "" && to != "" && subject != "" {
			s := subject
			mails = append(mails, Mail{ID: id, To: to, Subject: &s})
			capturing = false
			id, to, subject = "", "", ""
		}
	}
}
