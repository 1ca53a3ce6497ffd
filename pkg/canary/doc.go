// Package canary provides an embeddable liveness supervisor.
//
// A [Canary] owns one watchdog run together with the plugins that feed it
// pings or observe it. Use [New] to create an instance, [Canary.Start] to
// arm the watchdog and initialize plugins, and [Canary.Stop] to tear
// everything down:
//
//	c, err := canary.New(watchdog.Config{
//	    Timeout:   10 * time.Second,
//	    Terminate: true,
//	    Report:    true,
//	},
//	    canary.WithLogger(logger),
//	    filepinger.WithFilePinger(filepinger.Config{Path: "/run/worker.alive"}),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := c.Start(ctx); err != nil {
//	    return err
//	}
//	defer c.Stop()
//
// # Plugins
//
// A [Plugin] is initialized after the watchdog is armed, in registration
// order, and shut down in reverse order before the watchdog stops.
// Plugins receive a [Pinger] through [PluginConfig] so heartbeat sources
// such as a file watcher or an HTTP endpoint can keep the run alive.
// A plugin that also implements [watchdog.EventHandler] receives the run's
// events as well.
//
// # Lifecycle States
//
// A Canary moves through the states of [watchdog.State]. Query the active
// run with [Canary.Status].
package canary
