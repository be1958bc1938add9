package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/retail-analyst/server/internal/agent/model"
	"github.com/retail-analyst/server/internal/analyst"
	logx "github.com/retail-analyst/server/pkg/logger"
)

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Server().Run(ctx)
}

func runAsk(cmd *cobra.Command, opts *rootOptions, args []string) error {
	ctx := cmd.Context()
	conversationID, _ := cmd.Flags().GetString("conversation")

	app, err := NewApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	question := strings.Join(args, " ")
	var answer string
	if conversationID != "" {
		answer, err = app.Analyst.AnalyzeConversation(ctx, conversationID, question)
	} else {
		answer, err = app.Facades.Ask(ctx, question)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func runAnalysis(cmd *cobra.Command, opts *rootOptions, args []string) error {
	ctx := cmd.Context()
	question, _ := cmd.Flags().GetString("question")

	app, err := NewApp(ctx, opts.cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	answer, err := app.Facades.Dispatch(ctx, args[0], question)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func runAnalyses(cmd *cobra.Command) error {
	facades := analyst.NewFacades(nil).List()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd, facades)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, f := range facades {
		fmt.Fprintf(w, "%s\t%s\n", f.Type, f.Title)
	}
	fmt.Fprintf(w, "%s\t%s\n", analyst.CustomAnalysis, "Free-form question (--question)")
	return w.Flush()
}

func runTools(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	app, err := NewToolsApp(ctx, opts.cfg)
	if err != nil {
		return err
	}

	infos, err := app.Tools.Infos(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, info := range infos {
		desc, _, _ := strings.Cut(info.Desc, "\n")
		fmt.Fprintf(w, "%s\t%s\n", info.Name, desc)
	}
	return w.Flush()
}

func runTool(cmd *cobra.Command, opts *rootOptions, args []string) error {
	ctx := cmd.Context()
	app, err := NewToolsApp(ctx, opts.cfg)
	if err != nil {
		return err
	}

	arguments, err := toolArguments(cmd, args)
	if err != nil {
		return err
	}
	out, err := app.Tools.Invoke(ctx, args[0], arguments)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, []byte(out), "", "  "); err != nil {
		pretty.Reset()
		pretty.WriteString(out)
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty.String())

	var res model.ToolResult
	if err := json.Unmarshal([]byte(out), &res); err == nil && res.Failed() {
		logx.Debug().Str("tool", res.Tool).Str("kind", res.Kind).Msg("tool reported a failure")
		return fmt.Errorf("%s: %s", res.Kind, res.Error)
	}
	return nil
}

// toolArguments prefers an explicit JSON argument over the convenience flags.
func toolArguments(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 2 {
		if !json.Valid([]byte(args[1])) {
			return "", fmt.Errorf("arguments must be a JSON object, got %q", args[1])
		}
		return args[1], nil
	}

	fields := map[string]string{}
	for _, name := range []string{"variant", "dimension", "granularity"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			fields[name] = v
		}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
