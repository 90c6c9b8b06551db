package accesslog

import (
	"fmt"
	"regexp"
	"strings"
)

// linePattern is the full access log grammar as a single anchored expression.
// One named group per column. The final group swallows any columns appended by
// future log format revisions so new fields never break the parse.
var linePattern = regexp.MustCompile(
	`^(?P<type>[^ ]*) ` +
		`(?P<time>[^ ]*) ` +
		`(?P<elb>[^ ]*) ` +
		`(?P<client_ip>[^ ]*):(?P<client_port>[0-9]*) ` +
		`(?P<target_ip>[^ ]*)[:-](?P<target_port>[0-9]*) ` +
		`(?P<request_processing_time>[-.0-9]*) ` +
		`(?P<target_processing_time>[-.0-9]*) ` +
		`(?P<response_processing_time>[-.0-9]*) ` +
		`(?P<elb_status_code>|[-0-9]*) ` +
		`(?P<target_status_code>-|[-0-9]*) ` +
		`(?P<received_bytes>[-0-9]*) ` +
		`(?P<sent_bytes>[-0-9]*) ` +
		`"(?P<request_method>[^ ]*) ` +
		`(?P<request_url>[^ ]*) ` +
		`(?P<request_http_version>- |[^ ]*)" ` +
		`"(?P<user_agent>[^"]*)" ` +
		`(?P<ssl_cipher>[A-Z0-9-]+) ` +
		`(?P<ssl_protocol>[A-Za-z0-9.-]*) ` +
		`(?P<target_group_arn>[^ ]*) ` +
		`"(?P<trace_id>[^"]*)" ` +
		`"(?P<domain_name>[^"]*)" ` +
		`"(?P<chosen_cert_arn>[^"]*)" ` +
		`(?P<matched_rule_priority>[-.0-9]*) ` +
		`(?P<request_creation_time>[^ ]*) ` +
		`"(?P<actions_executed>[^"]*)" ` +
		`"(?P<redirect_url>[^"]*)" ` +
		`"(?P<error_reason>[^"]*)"` +
		`(?P<new_field>.*)`,
)

// Entry is one parsed access log line. Every field is the raw column text;
// sentinels ("-", "-1", empty) are preserved rather than normalized.
type Entry struct {
	Type                   string
	Time                   string
	ELB                    string
	ClientIP               string
	ClientPort             string
	TargetIP               string
	TargetPort             string
	RequestProcessingTime  string
	TargetProcessingTime   string
	ResponseProcessingTime string
	ELBStatusCode          string
	TargetStatusCode       string
	ReceivedBytes          string
	SentBytes              string
	RequestMethod          string
	RequestURL             string
	RequestHTTPVersion     string
	UserAgent              string
	SSLCipher              string
	SSLProtocol            string
	TargetGroupARN         string
	TraceID                string
	DomainName             string
	ChosenCertARN          string
	MatchedRulePriority    string
	RequestCreationTime    string
	ActionsExecuted        string
	RedirectURL            string
	ErrorReason            string
	// Extra is the verbatim tail beyond the known columns, kept for forward
	// compatibility with log format additions.
	Extra string
}

// ParseError reports a line that does not match the access log grammar.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("accesslog: malformed line (%s): %q", e.Reason, e.Line)
}

// Parse matches line against the access log grammar. It returns either a
// fully populated Entry or a *ParseError; no partial records.
func Parse(line string) (Entry, error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, &ParseError{Line: line, Reason: "does not match access log grammar"}
	}

	fields := make(map[string]string, len(m))
	for i, name := range linePattern.SubexpNames() {
		if name != "" {
			fields[name] = m[i]
		}
	}

	return Entry{
		Type:                   fields["type"],
		Time:                   fields["time"],
		ELB:                    fields["elb"],
		ClientIP:               fields["client_ip"],
		ClientPort:             fields["client_port"],
		TargetIP:               fields["target_ip"],
		TargetPort:             fields["target_port"],
		RequestProcessingTime:  fields["request_processing_time"],
		TargetProcessingTime:   fields["target_processing_time"],
		ResponseProcessingTime: fields["response_processing_time"],
		ELBStatusCode:          fields["elb_status_code"],
		TargetStatusCode:       fields["target_status_code"],
		ReceivedBytes:          fields["received_bytes"],
		SentBytes:              fields["sent_bytes"],
		RequestMethod:          fields["request_method"],
		RequestURL:             fields["request_url"],
		RequestHTTPVersion:     fields["request_http_version"],
		UserAgent:              fields["user_agent"],
		SSLCipher:              fields["ssl_cipher"],
		SSLProtocol:            fields["ssl_protocol"],
		TargetGroupARN:         fields["target_group_arn"],
		TraceID:                fields["trace_id"],
		DomainName:             fields["domain_name"],
		ChosenCertARN:          fields["chosen_cert_arn"],
		MatchedRulePriority:    fields["matched_rule_priority"],
		RequestCreationTime:    fields["request_creation_time"],
		ActionsExecuted:        fields["actions_executed"],
		RedirectURL:            fields["redirect_url"],
		ErrorReason:            fields["error_reason"],
		Extra:                  fields["new_field"],
	}, nil
}

// IsServerError reports whether the entry represents a 5xx response. Either
// status column qualifies; a "-" target status (connection never reached the
// target) counts only when the edge status is itself 5xx.
func (e Entry) IsServerError() bool {
	return isServerStatus(e.ELBStatusCode) || isServerStatus(e.TargetStatusCode)
}

func isServerStatus(code string) bool {
	return strings.HasPrefix(code, "5")
}
