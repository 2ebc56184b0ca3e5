package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"policy_compass/pkg/core/agent"
	"policy_compass/pkg/core/dashboard"
	"policy_compass/pkg/core/store"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Start an interactive comparison workspace",
	Long: `Opens a line-oriented workspace. Commands:

  topic <text>     set the policy topic
  add <country>    add a country to the selection
  remove <country> remove a country from the selection
  list             show the current topic and countries
  clear            empty the country selection
  examples         show example topics
  analyze          run the comparison for the current selection
  show             print the current analysis as Markdown
  detail <id>      show one country's policy and suggestions
  ask <question>   ask the assistant about the current analysis
  help             show this list
  quit             leave the workspace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return runREPL(ctx, a.Workspace(), a.Repo, a.Agents.ModelFor(agent.RoleAnalysis), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

const replHelp = `commands: topic <text> | add <country> | remove <country> | list | clear | examples | analyze | show | detail <id> | ask <question> | help | quit`

// runREPL drives the workspace from in. Generated analyses are saved to repo
// under model, the same way the one-shot analyze command stores them.
func runREPL(ctx context.Context, w *dashboard.Workspace, repo store.Repository, model string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, replHelp)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)

		switch strings.ToLower(command) {
		case "quit", "exit":
			return nil
		case "help":
			fmt.Fprintln(out, replHelp)
		case "topic":
			w.SetTopic(arg)
			fmt.Fprintf(out, "topic set: %s\n", arg)
		case "add":
			if w.Countries.Add(arg) {
				fmt.Fprintf(out, "added %s (%d selected)\n", arg, w.Countries.Len())
			} else {
				fmt.Fprintf(out, "%q is already selected or empty\n", arg)
			}
		case "remove":
			if w.Countries.Remove(arg) {
				fmt.Fprintf(out, "removed %s (%d selected)\n", arg, w.Countries.Len())
			} else {
				fmt.Fprintf(out, "%q is not selected\n", arg)
			}
		case "clear":
			w.Countries.Clear()
			fmt.Fprintln(out, "selection cleared")
		case "list":
			fmt.Fprintf(out, "topic: %s\n", w.Topic())
			fmt.Fprintf(out, "countries: %s\n", strings.Join(w.Countries.Names(), ", "))
		case "examples":
			for i, p := range dashboard.ExamplePrompts {
				fmt.Fprintf(out, "%d. %s\n", i+1, p)
			}
		case "analyze":
			fmt.Fprintln(out, "analyzing...")
			rec, err := w.Generate(ctx)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			rec.Model = model
			if err := repo.Save(ctx, rec); err != nil {
				fmt.Fprintf(out, "warning: analysis not stored: %v\n", err)
			}
			printSummary(out, rec.Analysis)
			fmt.Fprintf(out, "\nsaved as %s\n", rec.ID)
		case "detail":
			rec := w.Record()
			if rec == nil {
				fmt.Fprintln(out, "no analysis yet; run analyze first")
				continue
			}
			id, err := strconv.Atoi(arg)
			if err != nil {
				fmt.Fprintf(out, "usage: detail <id>\n")
				continue
			}
			c, ok := dashboard.FindContract(rec.Analysis, id)
			if !ok {
				fmt.Fprintf(out, "no policy with id %d\n", id)
				continue
			}
			printContract(out, c)
		case "show":
			rec := w.Record()
			if rec == nil {
				fmt.Fprintln(out, "no analysis yet; run analyze first")
				continue
			}
			if err := writeRecord(out, rec, "md"); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		case "ask":
			reply, err := w.Ask(ctx, arg)
			if errors.Is(err, dashboard.ErrNoAnalysis) {
				fmt.Fprintln(out, "no analysis yet; run analyze first")
				continue
			}
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
				continue
			}
			fmt.Fprintln(out, reply)
		default:
			fmt.Fprintf(out, "unknown command %q\n%s\n", command, replHelp)
		}
	}
}
