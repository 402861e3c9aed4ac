package parser

// Mail is one correlated mail record. Line carries the originating
// delivery-log line for records parsed from a delivery log; Subject is set
// once the mail-content pipeline has correlated the record by ID. To is
// the table key and is kept out of the JSON body.
type Mail struct {
	ID      string  `json:"id"`
	Line    *string `json:"line"`
	Subject *string `json:"subject"`
	To      string  `json:"-"`
}
