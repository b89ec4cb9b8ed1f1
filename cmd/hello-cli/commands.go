package main

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/hochfrequenz/multi-engineer/tui"
	"github.com/spf13/cobra"
)

const (
	styleSimple = "simple"
	styleFancy  = "fancy"
	styleTable  = "table"

	minCount = 1
	maxCount = 100
)

type helloOptions struct {
	count     int
	uppercase bool
	style     string
}

func newHelloCmd() *cobra.Command {
	var opts helloOptions
	cmd := &cobra.Command{
		Use:   "hello [NAME]",
		Short: "Print a greeting",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.count < minCount || opts.count > maxCount {
				return fmt.Errorf("invalid value for --count: %d is not in the range %d-%d", opts.count, minCount, maxCount)
			}
			name := "World"
			if len(args) == 1 {
				name = args[0]
			}
			greet(tui.New(cmd.OutOrStdout(), nil), name, opts)
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.count, "count", "c", 1, "number of greetings (1-100)")
	cmd.Flags().BoolVarP(&opts.uppercase, "uppercase", "u", false, "print the greeting in upper case")
	cmd.Flags().StringVarP(&opts.style, "style", "s", styleSimple, "output style: simple, fancy or table")
	return cmd
}

func greet(con *tui.Console, name string, opts helloOptions) {
	message := fmt.Sprintf("Hello %s!", name)
	if opts.uppercase {
		message = strings.ToUpper(message)
	}

	switch opts.style {
	case styleFancy:
		for i := 1; i <= opts.count; i++ {
			con.Panel(fmt.Sprintf("Greeting #%d", i), con.Bold(message), tui.ColorCyan)
		}
	case styleTable:
		rows := make([][]string, 0, opts.count)
		for i := 1; i <= opts.count; i++ {
			rows = append(rows, []string{strconv.Itoa(i), message})
		}
		con.Table("Greetings", []string{"Number", "Message"}, rows)
	default:
		// Unknown styles print plainly
		for i := 0; i < opts.count; i++ {
			con.Println(con.Green(message))
		}
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show information about this tool",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			con := tui.New(cmd.OutOrStdout(), nil)
			con.Table("CLI Tool Information", []string{"Property", "Value"}, [][]string{
				{"Name", "hello-cli"},
				{"Version", version},
				{"Description", "A greeting demo with styled terminal output"},
				{"Framework", "Cobra + Lip Gloss"},
				{"Go", runtime.Version()},
			})
		},
	}
}
