package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Brownie44l1/httpd/internal/files"
	"github.com/Brownie44l1/httpd/internal/headers"
	"github.com/Brownie44l1/httpd/internal/request"
	"github.com/Brownie44l1/httpd/internal/response"
	"github.com/Brownie44l1/httpd/internal/router"
)

func newParseCommand() *cobra.Command {
	var (
		rootDir        string
		maxHeaderBytes int
		crlf           bool
	)

	cmd := &cobra.Command{
		Use:   "parse [file]",
		Short: "Parse a raw request and show how the server would answer it",
		Long: `Read one raw HTTP request from a file, or stdin when no file is given,
run it through the parser, header checks and dispatcher, and print the
result. Nothing is sent anywhere.

Examples:
  printf 'GET / HTTP/1.1\r\nHost: localhost\r\n\r\n' | httpd parse --root-dir ./www
  httpd parse --crlf request.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			raw, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read request: %w", err)
			}
			if crlf {
				raw = toCRLF(raw)
			}

			resolver, err := files.NewResolver(rootDir, "", nil)
			if err != nil {
				return err
			}

			return explain(cmd.OutOrStdout(), raw, maxHeaderBytes, router.New(resolver, headers.Validator{}, nil))
		},
	}

	cmd.Flags().StringVar(&rootDir, "root-dir", ".", "document root used for file lookups")
	cmd.Flags().IntVar(&maxHeaderBytes, "max-header-bytes", request.DefaultMaxHeaderBytes, "largest accepted request head in bytes")
	cmd.Flags().BoolVar(&crlf, "crlf", false, "convert bare LF line endings to CRLF first")
	return cmd
}

func explain(w io.Writer, raw []byte, maxHeaderBytes int, rt *router.Router) error {
	req, err := request.NewParser(maxHeaderBytes).ReadFrom(bytes.NewReader(raw), nil)

	if req != nil {
		fmt.Fprintf(w, "request line: %s %s %s\n", req.Line.Method, req.Line.Target, req.Line.Version)
		for _, f := range req.Headers.Fields() {
			fmt.Fprintf(w, "  %s: %s\n", f.Name, f.Value)
		}
	}
	if err != nil {
		fmt.Fprintf(w, "parse error: %v\n", err)
	}

	o := rt.Dispatch(req, err)
	defer o.Close()

	fmt.Fprintf(w, "response: %s %d %s\n", o.Proto, o.Status, response.StatusText(o.Status))
	fmt.Fprintf(w, "content-length: %d\n", o.ContentLength)
	if o.ContentType != "" {
		fmt.Fprintf(w, "content-type: %s\n", o.ContentType)
	}
	fmt.Fprintf(w, "body: %t\n", o.SendsBody())
	return nil
}

func toCRLF(raw []byte) []byte {
	s := strings.ReplaceAll(string(raw), "\r\n", "\n")
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}
