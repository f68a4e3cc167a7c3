package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"appframe/internal/format"
	"appframe/internal/request"
	"appframe/internal/transport"
)

var errRequestFailed = errors.New("request failed")

var (
	headers   []string
	data      []string
	jsonBody  bool
	timeoutMS int
	noHistory bool
)

func init() {
	for _, method := range []string{"GET", "POST", "PUT", "PATCH", "DELETE"} {
		cmd := &cobra.Command{
			Use:   strings.ToLower(method) + " <url>",
			Short: fmt.Sprintf("Send a %s request", method),
			Args:  cobra.ExactArgs(1),
			RunE:  runRequest(method),
		}
		addRequestFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}

func addRequestFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&headers, "header", "H", []string{}, "Add header as key:value (can be used multiple times)")
	cmd.Flags().StringArrayVarP(&data, "data", "d", []string{}, "Add data as key=value (query for GET/DELETE, body otherwise)")
	cmd.Flags().BoolVar(&jsonBody, "json", false, "Send the body JSON encoded")
	cmd.Flags().IntVar(&timeoutMS, "timeout", 0, "Timeout in milliseconds (default from config)")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Don't save to history")
}

func runRequest(method string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv(cmd)
		if err != nil {
			format.PrintError(err.Error())
			return err
		}
		defer e.Close()

		opts := request.Options{
			BaseURL:   e.cfg.BaseURL,
			Transport: transport.NewHTTP(nil, e.logger),
			Logger:    e.logger,
		}
		if !noHistory {
			opts.Recorder = e.store
		}
		client := request.NewClient(opts)

		timeout := e.cfg.Timeout
		if timeoutMS > 0 {
			timeout = time.Duration(timeoutMS) * time.Millisecond
		}

		done := make(chan *request.Response, 1)
		call, err := client.Issue(request.Config{
			URL:     args[0],
			Method:  method,
			Data:    parseData(data),
			Headers: parseHeaders(headers),
			JSON:    jsonBody,
			Timeout: timeout,
			Success: func(r *request.Response) { done <- r },
			Error:   func(r *request.Response) { done <- r },
		})
		if err != nil {
			format.PrintError(fmt.Sprintf("Request failed: %v", err))
			return err
		}
		defer call.Release()

		resp := <-done
		format.PrintResult(call.Method(), call.URL(), resp)

		if !resp.Success {
			return errRequestFailed
		}
		return nil
	}
}

func parseHeaders(headerStrings []string) map[string]string {
	result := make(map[string]string)
	for _, h := range headerStrings {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			result[key] = value
		}
	}
	return result
}

func parseData(pairs []string) map[string]any {
	result := make(map[string]any)
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(key)] = value
	}
	return result
}
