// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// confcli is a thin interactive client over the session protocol:
// one subcommand per dispatch table row, talking to a running confd
// over its session socket.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/opennetd/configd/client"
	"github.com/opennetd/configd/internal/data"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/wire"
	"github.com/opennetd/configd/rpc"
)

var socketPath string

func dbFlag(name string) (rpc.DB, error) {
	switch name {
	case "candidate":
		return rpc.CANDIDATE, nil
	case "running":
		return rpc.RUNNING, nil
	case "startup":
		return rpc.STARTUP, nil
	}
	return rpc.AUTO, fmt.Errorf("unknown datastore %q (want candidate, running or startup)", name)
}

func dial() (*client.Client, error) {
	return client.Dial("unix", socketPath, fmt.Sprintf("confcli-%d", os.Getpid()))
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "confcli",
		Short: "confcli talks to a running confd over its session socket",
	}
	root.PersistentFlags().StringVar(&socketPath, "socket", "/run/confd/main.sock", "path to the session socket")

	root.AddCommand(
		newCommitCmd(),
		newValidateCmd(),
		newEditCmd(),
		newSaveCmd(),
		newSnapshotCmd(),
		newLoadCmd(),
		newCopyCmd(),
		newLockCmd(),
		newUnlockCmd(),
		newKillCmd(),
		newSubscribeCmd(),
		newDebugCmd(),
		newCallCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "run the commit pipeline on candidate",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			summary, err := c.Commit()
			if err != nil {
				return err
			}
			if summary != "" {
				fmt.Println(summary)
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "validate candidate without committing",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Validate()
		},
	}
}

func newEditCmd() *cobra.Command {
	var db, op, file string
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "merge, replace, create, delete or remove a subtree",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbVal, err := dbFlag(db)
			if err != nil {
				return err
			}
			opVal, ok := parseOp(op)
			if !ok {
				return fmt.Errorf("unknown operation %q", op)
			}
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()
			mod, err := datastore.DecodeTreeXML(f, nil)
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Edit(dbVal, opVal, mod)
		},
	}
	cmd.Flags().StringVar(&db, "db", "candidate", "target datastore")
	cmd.Flags().StringVar(&op, "op", "merge", "operation: merge, replace, create, delete, remove")
	cmd.Flags().StringVar(&file, "file", "", "XML file holding the modification tree")
	cmd.MarkFlagRequired("file")
	return cmd
}

func parseOp(s string) (data.Op, bool) {
	switch s {
	case "merge":
		return data.OpMerge, true
	case "replace":
		return data.OpReplace, true
	case "create":
		return data.OpCreate, true
	case "delete":
		return data.OpDelete, true
	case "remove":
		return data.OpRemove, true
	}
	return 0, false
}

func newSaveCmd() *cobra.Command {
	var db string
	cmd := &cobra.Command{
		Use:   "save [path]",
		Short: "serialize a datastore to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbVal, err := dbFlag(db)
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Save(dbVal, args[0])
		},
	}
	cmd.Flags().StringVar(&db, "db", "running", "datastore to serialize")
	return cmd
}

func newSnapshotCmd() *cobra.Command {
	var db string
	var keep int
	cmd := &cobra.Command{
		Use:   "snapshot [dir]",
		Short: "rotate the snapshot directory and write a new one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbVal, err := dbFlag(db)
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Snapshot(dbVal, args[0], keep)
		},
	}
	cmd.Flags().StringVar(&db, "db", "running", "datastore to snapshot")
	cmd.Flags().IntVar(&keep, "keep", 5, "number of previous snapshots to retain")
	return cmd
}

func newLoadCmd() *cobra.Command {
	var db string
	var replace bool
	cmd := &cobra.Command{
		Use:   "load [path]",
		Short: "parse a file and merge or replace it into a datastore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbVal, err := dbFlag(db)
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Load(dbVal, args[0], replace)
		},
	}
	cmd.Flags().StringVar(&db, "db", "candidate", "datastore to load into")
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the tree instead of merging")
	return cmd
}

func newCopyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy [src] [dst]",
		Short: "copy one datastore's root onto another's",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := dbFlag(args[0])
			if err != nil {
				return err
			}
			dst, err := dbFlag(args[1])
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Copy(src, dst)
		},
	}
}

func newLockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lock [db]",
		Short: "acquire the advisory lock on a datastore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbVal, err := dbFlag(args[0])
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Lock(dbVal)
		},
	}
}

func newUnlockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlock [db]",
		Short: "release the advisory lock on a datastore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dbVal, err := dbFlag(args[0])
			if err != nil {
				return err
			}
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Unlock(dbVal)
		},
	}
}

func newKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill [session-id]",
		Short: "terminate a peer session, releasing its locks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Kill(args[0])
		},
	}
}

func newSubscribeCmd() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "subscribe [stream]",
		Short: "subscribe to a notification stream and print events until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			c.Notify = func(body []byte) {
				payload, err := wire.DecodeReply(body)
				if err != nil {
					fmt.Fprintln(os.Stderr, "malformed event:", err)
					return
				}
				fmt.Println(string(payload))
			}
			id, err := c.Subscribe(args[0], filter, time.Time{}, time.Time{})
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "subscribed:", id)
			return c.Listen()
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "XPath filter evaluated against each event")
	return cmd
}

func newDebugCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "debug [log-name] [level]",
		Short: "set process-wide debug level for a named log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			status, err := c.SetDebug(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Println(status)
			return nil
		},
	}
}

func newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call [extension-name]",
		Short: "dispatch to a named extension and print its reply bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := dial()
			if err != nil {
				return err
			}
			defer c.Close()
			out, err := c.Call(args[0], nil)
			if err != nil {
				return err
			}
			os.Stdout.Write(out)
			return nil
		},
	}
}
