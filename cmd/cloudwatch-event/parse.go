package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sheep333/lambda-cloudwatch-event/internal/accesslog"
)

func parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [line]",
		Short: "Parse an access log line and print the record as JSON",
		Long: `Parse one access log line (argument or stdin) and print the typed
record as JSON. Exits non-zero when the line does not match the grammar.
Useful for checking what the service would extract from a given line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line, err := readLine(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			entry, err := accesslog.Parse(line)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(parsedView(entry), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}

func readLine(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input line")
	}
	return strings.TrimRight(scanner.Text(), "\r\n"), nil
}

// parsedView flattens the entry for JSON output with the log format's own
// column names.
func parsedView(e accesslog.Entry) map[string]string {
	return map[string]string{
		"type":                     e.Type,
		"time":                     e.Time,
		"elb":                      e.ELB,
		"client_ip":                e.ClientIP,
		"client_port":              e.ClientPort,
		"target_ip":                e.TargetIP,
		"target_port":              e.TargetPort,
		"request_processing_time":  e.RequestProcessingTime,
		"target_processing_time":   e.TargetProcessingTime,
		"response_processing_time": e.ResponseProcessingTime,
		"elb_status_code":          e.ELBStatusCode,
		"target_status_code":       e.TargetStatusCode,
		"received_bytes":           e.ReceivedBytes,
		"sent_bytes":               e.SentBytes,
		"request_method":           e.RequestMethod,
		"request_url":              e.RequestURL,
		"request_http_version":     e.RequestHTTPVersion,
		"user_agent":               e.UserAgent,
		"ssl_cipher":               e.SSLCipher,
		"ssl_protocol":             e.SSLProtocol,
		"target_group_arn":         e.TargetGroupARN,
		"trace_id":                 e.TraceID,
		"domain_name":              e.DomainName,
		"chosen_cert_arn":          e.ChosenCertARN,
		"matched_rule_priority":    e.MatchedRulePriority,
		"request_creation_time":    e.RequestCreationTime,
		"actions_executed":         e.ActionsExecuted,
		"redirect_url":             e.RedirectURL,
		"error_reason":             e.ErrorReason,
		"new_field":                e.Extra,
	}
}
