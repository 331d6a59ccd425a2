package cli

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/dbdev/pkg/errors"
)

const defaultSiteURL = "https://database.dev"

// openCommand creates the open command.
func (c *CLI) openCommand() *cobra.Command {
	var site string
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "open <handle> [partial-name]",
		Short: "Open a publisher or package page in the browser",
		Example: `  dbdev open olirice
  dbdev open olirice index_advisor`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pageURL, err := pageURL(site, args...)
			if err != nil {
				return err
			}
			if printOnly {
				fmt.Fprintln(cmd.OutOrStdout(), pageURL)
				return nil
			}
			if err := openBrowser(pageURL); err != nil {
				printWarning("Could not open a browser: %v", err)
				printDetail("%s", pageURL)
				return nil
			}
			printSuccess("Opened %s", pageURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", defaultSiteURL, "website base URL")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the URL instead of opening it")
	return cmd
}

// pageURL builds the website URL of a publisher or package page.
func pageURL(site string, args ...string) (string, error) {
	if err := errors.ValidateURL(site); err != nil {
		return "", err
	}
	if err := errors.ValidateHandle(args[0]); err != nil {
		return "", err
	}
	parts := []string{strings.TrimRight(site, "/"), url.PathEscape(args[0])}
	if len(args) > 1 {
		if err := errors.ValidatePartialName(args[1]); err != nil {
			return "", err
		}
		parts = append(parts, url.PathEscape(args[1]))
	}
	return strings.Join(parts, "/"), nil
}

func openBrowser(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", rawURL)
	case "linux":
		cmd = exec.Command("xdg-open", rawURL)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", rawURL)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
