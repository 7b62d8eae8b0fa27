// Package app wires configuration, logging and the gateway server into a
// runnable application for the serve command.
//
//	cfg := app.NewConfig(false, "/etc/estategate", true)
//	application, err := app.NewApplication(cfg)
//	if err != nil {
//	    return err
//	}
//	return application.Run(ctx)
//
// With Watch set, changes to config.yaml replace the client registrations
// of the running gateway. Other settings need a restart.
package app
