package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jchiru21/tech-debt-assassin/internal/config"
	"github.com/jchiru21/tech-debt-assassin/internal/llm"
	"github.com/jchiru21/tech-debt-assassin/internal/mcp"
	"github.com/jchiru21/tech-debt-assassin/internal/pipeline"
	"github.com/jchiru21/tech-debt-assassin/internal/retrieval"
	"github.com/jchiru21/tech-debt-assassin/internal/scanner"
	"github.com/jchiru21/tech-debt-assassin/internal/testgen"
	"github.com/jchiru21/tech-debt-assassin/internal/updater"
	"github.com/jchiru21/tech-debt-assassin/internal/verifier"
)

// Version info, set from main via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "tda",
	Short: "Find and repair missing Python type hints",
	Long:  "A CLI tool that scans Python projects for functions missing type hints, repairs them in place with LLM-proposed annotations, and verifies every patched file",
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Scan a Python file or project for missing type hints",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		result, err := scanner.Scan(targetPath(args), scanner.Options{
			Exclude: excludeSet(exclude),
			Force:   force,
		})
		if err != nil {
			return err
		}

		missing := result.MissingHints()
		for _, fn := range missing {
			fmt.Printf("✗ %s:%d %s\n", fn.FilePath, fn.DeclLine, fn.Name)
		}

		fmt.Printf("\nScanned %d files, %d functions\n", result.FilesScanned, len(result.Functions))
		if len(result.UnparsableFiles) > 0 {
			fmt.Printf("Unparsable files: %d\n", len(result.UnparsableFiles))
		}
		fmt.Printf("Missing hints: %d\n", len(missing))
		fmt.Printf("Annotation health: %d%%\n", result.Health())
		return nil
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix [path]",
	Short: "Repair missing type hints in place and verify the patched files",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		force, _ := cmd.Flags().GetBool("force")
		noContext, _ := cmd.Flags().GetBool("no-context")
		timeout, _ := cmd.Flags().GetInt("timeout")
		exclude, _ := cmd.Flags().GetStringSlice("exclude")

		opts := pipeline.Options{
			Exclude:        excludeSet(exclude),
			Force:          force,
			DisableContext: noContext,
			TopKExamples:   config.GetInt(5, "TDA_TOP_K", "tda_top_k"),
		}
		if timeout <= 0 {
			timeout = config.GetInt(0, "TDA_TIMEOUT", "tda_timeout")
		}
		if timeout > 0 {
			opts.RequestTimeout = time.Duration(timeout) * time.Second
		}

		path := targetPath(args)
		orch := pipeline.New(llm.NewClient(), verifier.New(), os.Stdout, opts)
		if retrieval.Enabled() {
			r, err := retrieval.New(pipeline.ProjectRoot(path))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Retrieval unavailable: %v\n", err)
			} else {
				orch.SetExampleSource(r)
				defer r.Close()
			}
		}

		report, err := orch.Run(cmd.Context(), path)
		if err != nil {
			return err
		}

		fixed, skipped, errored := report.Counts()
		fmt.Printf("\nFixed: %d  Skipped: %d  Errors: %d\n", fixed, skipped, errored)
		fmt.Printf("Annotation health: %d%% → %d%%\n", report.Initial.Health, report.Final.Health)
		return nil
	},
}

var genTestsCmd = &cobra.Command{
	Use:   "gen-tests [path]",
	Short: "Generate pytest suites for a file or every Python file in a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		path := targetPath(args)

		g := testgen.New(llm.NewClient(), os.Stdout)
		report, err := g.Run(cmd.Context(), path, pipeline.ProjectRoot(path), excludeSet(exclude))
		if err != nil {
			return err
		}

		fmt.Printf("\nGenerated: %d  Errors: %d\n", len(report.Generated), report.Failed)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Run the syntax, type and test checks against one Python file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		outcome := verifier.New().VerifyFile(cmd.Context(), path, pipeline.ProjectRoot(path))

		fmt.Printf("syntax: %s", outcome.Syntax.Status)
		if outcome.Syntax.Detail != "" {
			fmt.Printf(" (%s)", outcome.Syntax.Detail)
		}
		fmt.Printf("\ntypes:  %s", outcome.Types.Status)
		if outcome.Types.Detail != "" {
			fmt.Printf(" (%s)", outcome.Types.Detail)
		}
		fmt.Printf("\ntests:  %s", outcome.Tests.Status)
		if outcome.Tests.Detail != "" {
			fmt.Printf(" (%s)", outcome.Tests.Detail)
		}
		fmt.Println()
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index annotated signatures to Qdrant for retrieval-augmented repairs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		exclude, _ := cmd.Flags().GetStringSlice("exclude")
		root := pipeline.ProjectRoot(targetPath(args))

		r, err := retrieval.New(root)
		if err != nil {
			return err
		}
		defer r.Close()

		fmt.Printf("Indexing annotated signatures at: %s\n", root)
		return r.IndexProject(cmd.Context(), root, excludeSet(exclude))
	},
}

var clearIndexCmd = &cobra.Command{
	Use:   "clear-index [path]",
	Short: "Delete the Qdrant collection and local state for a project",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}

		r, err := retrieval.New(pipeline.ProjectRoot(targetPath(args)))
		if err != nil {
			return err
		}
		defer r.Close()

		if err := r.Clear(); err != nil {
			return err
		}
		fmt.Println("✓ Index cleared")
		return nil
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadFromUserConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		}
		return mcp.NewServer(Version).Run()
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update tda to the latest release",
	RunE: func(cmd *cobra.Command, args []string) error {
		mirror, _ := cmd.Flags().GetString("mirror")
		checkOnly, _ := cmd.Flags().GetBool("check")

		u := updater.NewUpdater(Version, mirror)
		release, available, err := u.CheckForUpdate()
		if err != nil {
			return err
		}

		if !available {
			fmt.Printf("Already up to date (%s)\n", Version)
			return nil
		}

		fmt.Printf("New version available: %s (current: %s)\n", release.TagName, Version)
		if checkOnly {
			return nil
		}
		return u.Update(release)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tda %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
	},
}

func targetPath(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func excludeSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

func init() {
	scanCmd.Flags().StringSliceP("exclude", "e", nil, "Directory names to exclude from the scan")
	scanCmd.Flags().Bool("force", false, "Treat every function as a target, even fully annotated ones")

	fixCmd.Flags().StringSliceP("exclude", "e", nil, "Directory names to exclude from the scan")
	fixCmd.Flags().Bool("force", false, "Re-annotate every function, even fully annotated ones")
	fixCmd.Flags().Bool("no-context", false, "Skip project context and use context-free requests")
	fixCmd.Flags().Int("timeout", 0, "Per-function request timeout in seconds")

	genTestsCmd.Flags().StringSliceP("exclude", "e", nil, "Directory names to exclude from generation")

	indexCmd.Flags().StringSliceP("exclude", "e", nil, "Directory names to exclude from indexing")

	updateCmd.Flags().String("mirror", "", "Mirror prefix for GitHub URLs")
	updateCmd.Flags().Bool("check", false, "Only check for a new version, do not install")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(genTestsCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(clearIndexCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}
