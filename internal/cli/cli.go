// Package cli implements the projectctl command tree: a thin HTTP client
// over a running projectd daemon.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const defaultBaseURL = "http://localhost:8050"

type client struct {
	base string
	http *http.Client
}

func newClient(addr string) *client {
	return &client{
		base: strings.TrimRight(addr, "/"),
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// NewRootCmd builds the projectctl command tree.
func NewRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:           "projectctl",
		Short:         "Control a running projectd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", envOr("PROJECTD_ADDR", defaultBaseURL),
		"Base URL of the projectd API")
	c := func() *client { return newClient(addr) }

	root.AddCommand(
		listCmd(c),
		statusCmd(c),
		startCmd(c),
		stopCmd(c),
		restartCmd(c),
		portsCmd(c),
		refreshCmd(c),
		deleteCmd(c),
		importCmd(c),
		healthCmd(c),
	)
	return root
}

func listCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List managed projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().getPrint("/api/modules/project_manager/get_managed_projects", nil)
		},
	}
}

func statusCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status [project]",
		Short: "Show freshly probed status for one project or all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if len(args) == 1 {
				q.Set("project_name", args[0])
			}
			return c().getPrint("/api/modules/project_manager/get_status", q)
		},
	}
}

func startCmd(c func() *client) *cobra.Command {
	var component string
	cmd := &cobra.Command{
		Use:   "start <project>",
		Short: "Start a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().postPrint("/api/modules/project_manager/start_project",
				map[string]any{"project_name": args[0], "component": component})
		},
	}
	cmd.Flags().StringVar(&component, "component", "all", "Component to start: all|frontend|backend")
	return cmd
}

func stopCmd(c func() *client) *cobra.Command {
	var component string
	cmd := &cobra.Command{
		Use:   "stop <project>",
		Short: "Stop a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().postPrint("/api/modules/project_manager/stop_project",
				map[string]any{"project_name": args[0], "component": component})
		},
	}
	cmd.Flags().StringVar(&component, "component", "all", "Component to stop: all|frontend|backend")
	return cmd
}

func restartCmd(c func() *client) *cobra.Command {
	var component string
	cmd := &cobra.Command{
		Use:   "restart <project>",
		Short: "Restart a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().postPrint("/api/modules/project_manager/restart_project",
				map[string]any{"project_name": args[0], "component": component})
		},
	}
	cmd.Flags().StringVar(&component, "component", "all", "Component to restart: all|frontend|backend")
	return cmd
}

func portsCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Show port reservations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().getPrint("/api/modules/project_manager/get_ports", nil)
		},
	}
}

func refreshCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rescan the projects root",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().postPrint("/api/modules/project_manager/refresh_projects", map[string]any{})
		},
	}
}

func deleteCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <project>",
		Short: "Stop a project and remove its directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().postPrint("/api/modules/project_manager/delete_project",
				map[string]any{"project_name": args[0]})
		},
	}
}

func importCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive.zip>",
		Short: "Import a project from a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return c().postRawPrint("/api/modules/project_manager/import_project", data)
		},
	}
}

func healthCmd(c func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Run a full health check across all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c().postPrint("/api/modules/project_manager/health_check", map[string]any{})
		},
	}
}

func (c *client) getPrint(path string, q url.Values) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	resp, err := c.http.Get(u)
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) postPrint(path string, body map[string]any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func (c *client) postRawPrint(path string, data []byte) error {
	resp, err := c.http.Post(c.base+path, "application/octet-stream", bytes.NewReader(data))
	if err != nil {
		return err
	}
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, body, "", "  ") == nil {
		body = pretty.Bytes()
	}
	fmt.Println(strings.TrimSpace(string(body)))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
