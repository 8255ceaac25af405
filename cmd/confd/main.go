// Copyright (c) 2026, the confd authors.
//
// SPDX-License-Identifier: LGPL-2.1-only

// confd is the engine daemon: it loads a compiled schema and the
// engine's startup options, opens its listening socket (or takes one
// over from systemd socket activation), and serves sessions until
// SIGTERM.
package main

import (
	"fmt"
	"log"
	"log/syslog"
	"net"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/activation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opennetd/configd"
	"github.com/opennetd/configd/internal/accesscontrol"
	"github.com/opennetd/configd/internal/config"
	"github.com/opennetd/configd/internal/datastore"
	"github.com/opennetd/configd/internal/ext"
	"github.com/opennetd/configd/internal/merge"
	"github.com/opennetd/configd/internal/notify"
	"github.com/opennetd/configd/internal/schema"
	"github.com/opennetd/configd/server"
	"github.com/opennetd/configd/session"
)

const basepath = "/run/confd"

var opts = struct {
	configFile   string
	schemaFile   string
	runDir       string
	socket       string
	pidfile      string
	logfile      string
	username     string
	groupname    string
	secretsgroup string
	supergroup   string
}{}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "confd",
		Short: "confd manages run-time configuration from a compiled schema",
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "/etc/confd/confd.conf", "ini file with engine startup options")
	flags.StringVar(&opts.schemaFile, "schema", "/usr/share/confd/schema.json", "compiled schema document")
	flags.StringVar(&opts.runDir, "rundir", basepath, "directory for candidate/running/startup datastore files")
	flags.StringVar(&opts.socket, "socketfile", basepath+"/main.sock", "path to the session socket")
	flags.StringVar(&opts.pidfile, "pidfile", basepath+"/confd.pid", "write pid to this file")
	flags.StringVar(&opts.logfile, "logfile", "", "redirect std{out,err} to this file")
	flags.StringVar(&opts.username, "user", "confd", "username exempt from access control (raised privileges)")
	flags.StringVar(&opts.groupname, "group", "confd", "group that owns the session socket")
	flags.StringVar(&opts.secretsgroup, "secretsgroup", "secrets", "group allowed to view nodes marked secret")
	flags.StringVar(&opts.supergroup, "supergroup", "", "group permitted access to all sessions")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	elog, dlog, wlog := openLoggers()

	if err := os.MkdirAll(opts.runDir, 0755); err != nil {
		return err
	}

	schemaRoot, err := loadSchema(opts.schemaFile)
	if err != nil {
		return fmt.Errorf("loading schema: %w", err)
	}

	fileOpts, err := config.LoadFile(opts.configFile, config.Defaults())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading config: %w", err)
	}
	v := viper.New()
	config.BindViper(v, fileOpts)
	engineOpts := config.FromViper(v)

	stores := openStores(schemaRoot, engineOpts)

	extensions := ext.NewRegistry()
	if err := extensions.InitAll(); err != nil {
		elog.Println("extension init:", err)
	}

	notifier := buildNotifier(engineOpts)

	ac := buildAccessControl(engineOpts)

	daemonConfig := &configd.Config{
		User:         opts.username,
		Runfile:      filepath.Join(opts.runDir, "running.config"),
		Logfile:      opts.logfile,
		Pidfile:      opts.pidfile,
		Socket:       opts.socket,
		SecretsGroup: opts.secretsgroup,
		SuperGroup:   opts.supergroup,
	}

	ln, err := listener(opts.socket, opts.username, opts.groupname)
	if err != nil {
		return fmt.Errorf("listener: %w", err)
	}

	srv := server.NewSrv(ln, stores, schemaRoot, extensions, notifier, nil, ac,
		daemonConfig, elog, dlog, wlog)

	writePid(opts.pidfile)

	go tickNotifier(notifier)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve() }()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigch:
		dlog.Println("received", sig, "- draining and shutting down")
		extensions.ExitAll()
		return srv.Shutdown()
	case err := <-serveErr:
		return err
	}
}

func openLoggers() (elog, dlog, wlog *log.Logger) {
	if opts.logfile != "" {
		if f, err := os.OpenFile(opts.logfile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0640); err == nil {
			syscall.Dup2(int(f.Fd()), 1)
			syscall.Dup2(int(f.Fd()), 2)
		}
	}
	var err error
	elog, err = configd.NewLogger(syslog.LOG_ERR|syslog.LOG_DAEMON, 0)
	if err != nil {
		elog = log.New(os.Stderr, "", 0)
	}
	dlog, err = configd.NewLogger(syslog.LOG_DEBUG|syslog.LOG_DAEMON, 0)
	if err != nil {
		dlog = log.New(os.Stderr, "", 0)
	}
	wlog, err = configd.NewLogger(syslog.LOG_WARNING|syslog.LOG_DAEMON, 0)
	if err != nil {
		wlog = log.New(os.Stderr, "", 0)
	}
	return elog, dlog, wlog
}

func loadSchema(path string) (*schema.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return schema.LoadJSON(f)
}

func storeFormat(datastoreFormat string) datastore.Format {
	if datastoreFormat == "json" {
		return datastore.FormatJSON
	}
	return datastore.FormatXML
}

func openStores(schemaRoot *schema.Node, o config.Options) *session.Stores {
	format := storeFormat(o.DatastoreFormat)
	mk := func(name string) *datastore.Store {
		s := datastore.New(name, filepath.Join(opts.runDir, name+".config"), format, o.CacheDatastores, schemaRoot)
		s.SetPrettyPrint(o.PrettyPrint)
		return s
	}
	return &session.Stores{
		Candidate: mk("candidate"),
		Running:   mk("running"),
		Startup:   mk("startup"),
	}
}

func buildNotifier(o config.Options) *notify.Engine {
	engine := notify.NewEngine(o.PublishEnabled)
	retention := time.Duration(o.StreamRetentionSeconds) * time.Second
	engine.RegisterStream("CONFIG", "configuration change events", true, retention, o.StreamURLPrefix)
	return engine
}

func tickNotifier(engine *notify.Engine) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for range t.C {
		engine.Tick()
	}
}

func buildAccessControl(o config.Options) merge.AccessControl {
	switch o.AccessControlMode {
	case config.AccessControlInternal:
		return accesscontrol.NewGroup([]string{opts.username})
	case config.AccessControlExternal:
		return accesscontrol.NewPathPrefix(nil)
	default:
		return nil
	}
}

func writePid(path string) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%d\n", os.Getpid())
}

// listener prefers a systemd-activated socket (LISTEN_FDS) over
// binding its own.
func listener(socketPath, username, groupname string) (net.Listener, error) {
	listeners, err := activation.Listeners(true)
	if err != nil {
		return nil, err
	}
	if len(listeners) > 0 {
		return listeners[0], nil
	}

	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	addr, err := net.ResolveUnixAddr("unix", socketPath)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(socketPath, 0770); err != nil {
		return nil, err
	}
	uid, gid := lookupIDs(username, groupname)
	os.Chown(socketPath, uid, gid)
	return ln, nil
}

func lookupIDs(username, groupname string) (uid, gid int) {
	if u, err := user.Lookup(username); err == nil {
		uid, _ = strconv.Atoi(u.Uid)
	}
	if g, err := user.LookupGroup(groupname); err == nil {
		gid, _ = strconv.Atoi(g.Gid)
	}
	return uid, gid
}
