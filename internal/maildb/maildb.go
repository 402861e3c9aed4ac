package maildb

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/felo/mailtail/internal/parser"
)

// DB is the in-memory correlation table: recipient address to the list of
// mail records seen for it, deduplicated by queue ID. One coarse mutex
// guards the whole map; every operation holds it for its full duration and
// never across I/O. The table is rebuilt from log files on startup, so
// nothing is ever persisted.
type DB struct {
	mu     sync.Mutex
	mails  map[string][]parser.Mail
	logger *slog.Logger
}

// New creates an empty correlation table.
func New(logger *slog.Logger) *DB {
	return &DB{
		mails:  make(map[string][]parser.Mail),
		logger: logger,
	}
}

// InsertMails appends each record to its recipient's bucket unless the
// bucket already holds a record with the same ID. Returns the number of
// records actually appended.
func (db *DB) InsertMails(mails []parser.Mail) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	inserted := 0
	for _, m := range mails {
		bucket := db.mails[m.To]
		if slices.ContainsFunc(bucket, func(existing parser.Mail) bool {
			return existing.ID == m.ID
		}) {
			continue
		}
		db.mails[m.To] = append(bucket, m)
		inserted++
	}
	return inserted
}

// UpdateSubjects sets the subject of the first record matching each
// incoming record's recipient and ID whose subject is still unset. A
// recipient with no bucket is a correlation miss: the mail-content
// pipeline got ahead of the delivery-log pipeline. Misses are warn-logged
// and dropped; there is no pending queue, the configured delay and
// bootstrap re-reads are the only mitigation. Returns the number of
// records actually updated.
func (db *DB) UpdateSubjects(mails []parser.Mail) int {
	db.mu.Lock()
	defer db.mu.Unlock()

	updated := 0
	for _, m := range mails {
		bucket, ok := db.mails[m.To]
		if !ok {
			db.logger.Warn("no email address found for inserting mail subjects", "to", m.To)
			continue
		}
		for i := range bucket {
			if bucket[i].Subject == nil && bucket[i].ID == m.ID {
				bucket[i].Subject = m.Subject
				updated++
				break
			}
		}
	}
	return updated
}

// Find returns the recipients whose address contains addrFilter, each with
// its records sorted by delivery-log line. A non-empty subjectFilter keeps
// only records whose subject is set and contains it case-insensitively;
// recipients left with no records are dropped. The returned slices are
// copies.
func (db *DB) Find(addrFilter, subjectFilter string) map[string][]parser.Mail {
	db.mu.Lock()
	defer db.mu.Unlock()

	subjectFilter = strings.ToLower(subjectFilter)
	results := make(map[string][]parser.Mail)
	for to, bucket := range db.mails {
		if !strings.Contains(to, addrFilter) {
			continue
		}
		var matches []parser.Mail
		for _, m := range bucket {
			if subjectFilter != "" {
				if m.Subject == nil || !strings.Contains(strings.ToLower(*m.Subject), subjectFilter) {
					continue
				}
			}
			matches = append(matches, m)
		}
		if len(matches) == 0 {
			continue
		}
		slices.SortFunc(matches, compareByLine)
		results[to] = matches
	}
	return results
}

// compareByLine orders records by their raw delivery-log line, records
// without one first.
func compareByLine(a, b parser.Mail) int {
	switch {
	case a.Line == nil && b.Line == nil:
		return 0
	case a.Line == nil:
		return -1
	case b.Line == nil:
		return 1
	default:
		return strings.Compare(*a.Line, *b.Line)
	}
}
