package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	taskgatesdk "taskgate/sdk/go"
)

func newClient() *taskgatesdk.Client {
	c := taskgatesdk.New(viper.GetString("server"))
	c.BearerToken = viper.GetString("token")
	return c
}

func requireToken(c *taskgatesdk.Client) error {
	if c.BearerToken == "" {
		return errors.New("not logged in; run taskgate login or set TASKGATE_TOKEN")
	}
	return nil
}

// saveEnvValue writes key=value into the workspace .env, keeping other keys.
func saveEnvValue(path, key, value string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		values = map[string]string{}
	}
	values[key] = value
	return godotenv.Write(values, path)
}

func loginCmd() *cobra.Command {
	var username, password string
	var save bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and obtain a bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = viper.GetString("password")
			}
			c := newClient()
			s, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}
			if save {
				if err := saveEnvValue(envFile(viper.GetString("workspace")), "TASKGATE_TOKEN", s.Token); err != nil {
					return err
				}
			}
			if viper.GetBool("json") {
				return printJSON(s)
			}
			fmt.Printf("logged in as user %d (%s); token expires %s\n", s.UserID, s.Role, s.ExpiresAt.Format(time.RFC3339))
			if !save {
				fmt.Println(s.Token)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&password, "password", "", "password (or TASKGATE_PASSWORD)")
	cmd.Flags().BoolVar(&save, "save", true, "store the token as TASKGATE_TOKEN in the workspace .env")
	return cmd
}

func meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			u, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			return printUsers(u)
		},
	}
}

func userCmd() *cobra.Command {
	usr := &cobra.Command{Use: "user", Short: "Manage users (admin only)"}
	usr.AddCommand(userCreateCmd())
	return usr
}

func userCreateCmd() *cobra.Command {
	var in taskgatesdk.NewUser
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			u, err := c.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printUsers(u)
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "username")
	cmd.Flags().StringVar(&in.Email, "email", "", "email")
	cmd.Flags().StringVar(&in.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&in.Role, "role", "user", "role (admin, user)")
	return cmd
}

func taskCmd() *cobra.Command {
	tsk := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Admins create, update and delete tasks. Assignees and admins complete them.",
	}
	tsk.AddCommand(taskCreateCmd())
	tsk.AddCommand(taskListCmd())
	tsk.AddCommand(taskUpdateCmd())
	tsk.AddCommand(taskDeleteCmd())
	tsk.AddCommand(taskCompleteCmd())
	return tsk
}

// parseDue accepts RFC 3339 timestamps or plain dates.
func parseDue(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

func parseTaskID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", arg)
	}
	return id, nil
}

func taskCreateCmd() *cobra.Command {
	var in taskgatesdk.NewTask
	var due string
	var assignee int64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			d, err := parseDue(due)
			if err != nil {
				return err
			}
			in.DueDate = d
			if cmd.Flags().Changed("assignee") {
				in.AssignedUserID = &assignee
			}
			t, err := c.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printTasks(t)
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.Status, "status", "", "initial status (pending, in-progress, completed)")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "assigned user id")
	return cmd
}

func taskListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List visible tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			tasks, err := c.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			return printTasks(tasks...)
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, due, status string
	var assignee int64
	var unassign bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields; only given flags are changed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			var patch taskgatesdk.TaskPatch
			if cmd.Flags().Changed("title") {
				patch.Title = &title
			}
			if cmd.Flags().Changed("description") {
				patch.Description = &description
			}
			if cmd.Flags().Changed("due") {
				d, err := parseDue(due)
				if err != nil {
					return err
				}
				patch.DueDate = &d
			}
			if cmd.Flags().Changed("status") {
				patch.Status = &status
			}
			if cmd.Flags().Changed("assignee") {
				patch.AssignedUserID = &assignee
			}
			if unassign {
				if patch.AssignedUserID != nil {
					return errors.New("--assignee and --unassign are mutually exclusive")
				}
				patch.ClearAssignee = true
			}
			t, err := c.UpdateTask(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			return printTasks(t)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "status (pending, in-progress, completed)")
	cmd.Flags().Int64Var(&assignee, "assignee", 0, "assigned user id")
	cmd.Flags().BoolVar(&unassign, "unassign", false, "clear the assignment")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			if err := c.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]bool{"success": true})
			}
			fmt.Printf("deleted task %d\n", id)
			return nil
		},
	}
}

func taskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseTaskID(args[0])
			if err != nil {
				return err
			}
			c := newClient()
			if err := requireToken(c); err != nil {
				return err
			}
			t, err := c.CompleteTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printTasks(t)
		},
	}
}

func printTasks(tasks ...taskgatesdk.Task) error {
	if viper.GetBool("json") {
		if len(tasks) == 1 {
			return printJSON(tasks[0])
		}
		return printJSON(tasks)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Assignee", "Due", "Updated"})
	for _, t := range tasks {
		assignee := ""
		if t.AssignedUserID != nil {
			assignee = strconv.FormatInt(*t.AssignedUserID, 10)
		}
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, assignee, t.DueDate.Format(time.DateOnly), t.UpdatedAt.Format(time.RFC3339)})
	}
	tw.Render()
	return nil
}

func printUsers(users ...taskgatesdk.User) error {
	if viper.GetBool("json") {
		if len(users) == 1 {
			return printJSON(users[0])
		}
		return printJSON(users)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Username", "Email", "Role"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Username, strings.ToLower(u.Email), u.Role})
	}
	tw.Render()
	return nil
}
