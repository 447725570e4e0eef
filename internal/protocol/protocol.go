// Package protocol defines the text frames exchanged with players: request verbs,
// broadcast topics, replies, and the delimiters that structure their parameters.
package protocol

import (
	"strconv"
	"strings"
)

// Request verbs accepted on the request/reply endpoint.
const (
	VerbNewPoint    = "CliNewPoint"
	VerbNewWinner   = "CliNewWinner"
	VerbNewPlayer   = "CliNewPlayer"
	VerbPlayerReady = "CliPlayerReady"
)

// Broadcast topics emitted on the publish endpoint.
const (
	TopicNewPoint      = "ServerNewPoint"
	TopicNewWinner     = "ServerNewWinner"
	TopicNewPlayerList = "ServerNewPlayerList"
	TopicPlayerReady   = "ServerPlayerReady"
	TopicNewGame       = "ServerNewGame"
)

// Replies sent for every request.
const (
	ReplyOK    = "OK"
	ReplyError = "ERROR"
)

// Frame delimiters.
const (
	VerbSep   = "@"
	FieldSep  = "%"
	RecordSep = "|"
)

// Request is a parsed request frame.
type Request struct {
	// Verb selects the handler.
	Verb string
	// Param is everything after the first VerbSep.
	Param string
	// HasParam reports whether the frame contained VerbSep at all.
	HasParam bool
}

// String renders the request back into its wire form.
func (r Request) String() string {
	if !r.HasParam {
		return r.Verb
	}
	return r.Verb + VerbSep + r.Param
}

// ParseRequest splits a request frame on the first VerbSep.
//
// Postcondition: ok is false when the verb is empty; Param keeps any further separators.
func ParseRequest(frame string) (req Request, ok bool) {
	verb, param, found := strings.Cut(frame, VerbSep)
	if verb == "" {
		return Request{}, false
	}
	return Request{Verb: verb, Param: param, HasParam: found}, true
}

// NewRequest builds a request frame from a verb and its sub-fields.
func NewRequest(verb string, fields ...string) string {
	return verb + VerbSep + JoinFields(fields...)
}

// SplitFields splits a parameter into exactly n sub-fields.
//
// Postcondition: ok is false when the parameter does not hold exactly n fields.
func SplitFields(param string, n int) (fields []string, ok bool) {
	fields = strings.Split(param, FieldSep)
	if len(fields) != n {
		return nil, false
	}
	return fields, true
}

// JoinFields joins sub-fields with FieldSep.
func JoinFields(fields ...string) string {
	return strings.Join(fields, FieldSep)
}

// JoinRecords joins list records with RecordSep.
func JoinRecords(records []string) string {
	return strings.Join(records, RecordSep)
}

// RosterEntry is one player record of a ServerNewPlayerList payload.
type RosterEntry struct {
	ID   string
	IP   string
	Name string
	Seat int
}

// EncodeRoster renders entries as "id%ip%name%seat" records joined by RecordSep,
// in the order given.
func EncodeRoster(entries []RosterEntry) string {
	records := make([]string, len(entries))
	for i, e := range entries {
		records[i] = JoinFields(e.ID, e.IP, e.Name, strconv.Itoa(e.Seat))
	}
	return JoinRecords(records)
}

// DecodeRoster parses a ServerNewPlayerList payload.
//
// Postcondition: ok is false if any record is malformed. An empty payload yields no entries.
func DecodeRoster(payload string) (entries []RosterEntry, ok bool) {
	if payload == "" {
		return nil, true
	}
	for _, rec := range strings.Split(payload, RecordSep) {
		f, ok := SplitFields(rec, 4)
		if !ok {
			return nil, false
		}
		seat, err := strconv.Atoi(f[3])
		if err != nil {
			return nil, false
		}
		entries = append(entries, RosterEntry{ID: f[0], IP: f[1], Name: f[2], Seat: seat})
	}
	return entries, true
}
