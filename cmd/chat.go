package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/architect/core/pipeline"
)

var chatCodeFile string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Iterate on an app interactively",
	Long: `Chat keeps the latest working code between turns. The first message builds
an app unless --code supplies one; later messages revise it.

Commands:
  /error    paste an error; end it with a line holding a single "."
  /code F   replace the working code with the contents of F
  /show     print the working code
  /save F   write the working code to F
  /quit     leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatCodeFile, "code", "", "start from the code in this file")
}

func runChat(cmd *cobra.Command, _ []string) error {
	code, err := readAttachment(cmd, chatCodeFile)
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	s := &chatSession{
		app:  a,
		cmd:  cmd,
		in:   bufio.NewScanner(cmd.InOrStdin()),
		out:  cmd.OutOrStdout(),
		conv: pipeline.NewConversation(code),
	}
	s.in.Buffer(make([]byte, 64*1024), 1<<20)
	return s.loop()
}

type chatSession struct {
	app  *app
	cmd  *cobra.Command
	in   *bufio.Scanner
	out  io.Writer
	conv pipeline.Conversation
	// pendingError is attached to the next message.
	pendingError string
}

func (s *chatSession) loop() error {
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			fmt.Fprintln(s.out)
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := s.command(line)
			if err != nil {
				fmt.Fprintln(s.out, "error:", err)
			}
			if done {
				return nil
			}
			continue
		}
		s.send(line)
	}
}

func (s *chatSession) command(line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/error":
		fmt.Fprintln(s.out, `paste the error, then a line with "."`)
		var lines []string
		for s.in.Scan() {
			if s.in.Text() == "." {
				break
			}
			lines = append(lines, s.in.Text())
		}
		s.pendingError = strings.Join(lines, "\n")
		fmt.Fprintf(s.out, "attached %d lines to the next message\n", len(lines))
		return false, s.in.Err()
	case "/code":
		if arg == "" {
			return false, fmt.Errorf("usage: /code FILE")
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return false, err
		}
		s.conv = pipeline.NewConversation(string(data))
		fmt.Fprintf(s.out, "loaded %s\n", arg)
	case "/show":
		if s.conv.Code == "" {
			fmt.Fprintln(s.out, "no code yet")
			return false, nil
		}
		fmt.Fprintln(s.out, strings.TrimRight(s.conv.Code, "\n"))
	case "/save":
		if arg == "" {
			return false, fmt.Errorf("usage: /save FILE")
		}
		if s.conv.Code == "" {
			return false, fmt.Errorf("no code yet")
		}
		if err := os.WriteFile(arg, []byte(ensureNewline(s.conv.Code)), 0o644); err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "saved %s\n", arg)
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	return false, nil
}

func (s *chatSession) send(text string) {
	in := s.conv.Input(text, s.pendingError)
	s.pendingError = ""
	result := s.app.pipeline.Run(s.cmd.Context(), in)
	s.conv = s.conv.Record(in, result)

	if !result.Succeeded {
		fmt.Fprintln(s.out, (&ResultError{Result: result}).Error())
		return
	}
	printPlain(s.out, result, false)
}
