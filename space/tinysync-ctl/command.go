package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pingcap-incubator/tinysync/space/types"
	"github.com/spf13/cobra"
)

// CommandFlags are the flags shared by all commands.
type CommandFlags struct {
	URL      string
	SpaceID  string
	ClientID string
}

var dialClient = &http.Client{Timeout: 30 * time.Second}

// NewRootCommand builds the tinysync-ctl command tree.
func NewRootCommand() *cobra.Command {
	flags := &CommandFlags{}
	rootCmd := &cobra.Command{
		Use:           "tinysync-ctl",
		Short:         "TinySync control tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.URL, "url", "u", "http://127.0.0.1:7890", "address of the tinysync server")
	rootCmd.PersistentFlags().StringVarP(&flags.SpaceID, "space", "s", "default", "space id")
	rootCmd.PersistentFlags().StringVarP(&flags.ClientID, "client", "c", "", "client id, a random one when empty")
	rootCmd.AddCommand(
		NewPushCommand(flags),
		NewPullCommand(flags),
		NewStatusCommand(flags),
		NewPingCommand(flags),
	)
	return rootCmd
}

func (f *CommandFlags) clientID() string {
	if f.ClientID == "" {
		f.ClientID = uuid.New().String()
	}
	return f.ClientID
}

func (f *CommandFlags) spaceURL(op string) string {
	return strings.TrimSuffix(f.URL, "/") + "/api/v1/spaces/" + f.SpaceID + "/" + op
}

// NewPushCommand returns the push subcommand.
func NewPushCommand(flags *CommandFlags) *cobra.Command {
	var id uint64
	cmd := &cobra.Command{
		Use:   "push <mutator> <args-json>",
		Short: "push one mutation",
		Long:  "push one mutation. Without --id the mutation gets the id following the client's last mutation id.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mutationArgs, err := types.NewValue([]byte(args[1]))
			if err != nil {
				return err
			}
			clientID := flags.clientID()
			if id == 0 {
				resp, err := pull(flags, nil)
				if err != nil {
					return err
				}
				id = resp.LastMutationID + 1
			}
			req := &types.PushRequest{
				ClientID:  clientID,
				Mutations: []types.Mutation{{ID: id, Name: args[0], Args: mutationArgs}},
			}
			if err := req.Validate(); err != nil {
				return err
			}
			if _, err := postJSON(flags.spaceURL("push"), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pushed mutation %d as client %s\n", id, clientID)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&id, "id", 0, "mutation id")
	return cmd
}

// NewPullCommand returns the pull subcommand.
func NewPullCommand(flags *CommandFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull [cookie]",
		Short: "pull the changes since cookie, or everything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cookie *uint64
			if len(args) == 1 {
				c, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil {
					return fmt.Errorf("bad cookie %q: %v", args[0], err)
				}
				cookie = &c
			}
			resp, err := pull(flags, cookie)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}

// NewStatusCommand returns the status subcommand.
func NewStatusCommand(flags *CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show the server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := get(strings.TrimSuffix(flags.URL, "/") + "/api/v1/status")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(body))
			return nil
		},
	}
}

// NewPingCommand returns the ping subcommand.
func NewPingCommand(flags *CommandFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "check the server is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if _, err := get(strings.TrimSuffix(flags.URL, "/") + "/ping"); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), time.Since(start).String())
			return nil
		},
	}
}

func pull(flags *CommandFlags, cookie *uint64) (*types.PullResponse, error) {
	body, err := postJSON(flags.spaceURL("pull"), &types.PullRequest{ClientID: flags.clientID(), Cookie: cookie})
	if err != nil {
		return nil, err
	}
	resp := new(types.PullResponse)
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, fmt.Errorf("bad pull response: %v", err)
	}
	return resp, nil
}

func postJSON(url string, req interface{}) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := dialClient.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

func get(url string) ([]byte, error) {
	resp, err := dialClient.Get(url)
	if err != nil {
		return nil, err
	}
	return readResponse(resp)
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("[%d] %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
