package userinteraction

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"paper-reader/internal/application/port/output"

	"github.com/fatih/color"
)

var _ output.UserInteractionPort = (*ConsoleUserInteraction)(nil)

const maxErrorText = 500

type ConsoleUserInteraction struct {
	reader *bufio.Reader
	out    io.Writer
	// statusWidth is the width of the transient status line still on screen.
	statusWidth int
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return NewConsole(os.Stdin, color.Output)
}

func NewConsole(in io.Reader, out io.Writer) *ConsoleUserInteraction {
	return &ConsoleUserInteraction{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (u *ConsoleUserInteraction) AskQuestion(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u.clearStatus()

	bold := color.New(color.Bold)
	bold.Fprint(u.out, prompt)

	line, err := u.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(u.out)
			return "", io.EOF
		}
		return "", fmt.Errorf("failed to read user input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func (u *ConsoleUserInteraction) ShowBanner(ctx context.Context, lines ...string) {
	if len(lines) == 0 {
		return
	}
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(u.out, lines[0])
	for _, line := range lines[1:] {
		fmt.Fprintf(u.out, " - %s\n", line)
	}
	fmt.Fprintln(u.out, strings.Repeat("-", 50))
}

// ShowThinking prints a status line that the next output overwrites.
func (u *ConsoleUserInteraction) ShowThinking(ctx context.Context, status string) {
	if status == "" {
		return
	}
	u.clearStatus()
	dim := color.New(color.Faint)
	dim.Fprintf(u.out, "%s\r", status)
	u.statusWidth = utf8.RuneCountInString(status) * 2
}

func (u *ConsoleUserInteraction) ShowReply(ctx context.Context, speaker, text string) {
	u.clearStatus()
	blue := color.New(color.FgBlue, color.Bold)
	blue.Fprintf(u.out, "%s: ", speaker)
	fmt.Fprintf(u.out, "%s\n\n", text)
}

func (u *ConsoleUserInteraction) ShowImages(ctx context.Context, paths []string) {
	u.clearStatus()
	green := color.New(color.FgGreen)
	if len(paths) == 0 {
		green.Fprintln(u.out, "✅ 图片已生成")
		return
	}
	green.Fprintln(u.out, "✅ 图片已生成！")
	for _, path := range paths {
		fmt.Fprintf(u.out, "保存在: %s\n", path)
	}
	fmt.Fprintln(u.out)
}

func (u *ConsoleUserInteraction) ShowError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	u.clearStatus()
	red := color.New(color.FgRed)
	red.Fprint(u.out, "❌ 出错: ")

	dim := color.New(color.Faint)
	dim.Fprintln(u.out, truncate(err.Error(), maxErrorText))
}

func (u *ConsoleUserInteraction) clearStatus() {
	if u.statusWidth == 0 {
		return
	}
	fmt.Fprintf(u.out, "%s\r", strings.Repeat(" ", u.statusWidth))
	u.statusWidth = 0
}

func truncate(s string, maxRunes int) string {
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return string([]rune(s)[:maxRunes]) + "..."
}
