package botclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nais/botdeploy/pkg/deployer"
	log "github.com/sirupsen/logrus"
)

const Usage = `Usage: botctl [flags] <command> [argument]

Commands:
  deploy <app>          deploy --repo with --session-id as app
  list                  list deployed bots
  restart <app>         restart all dynos of app
  update-session <app>  set a new --session-id on app
  delete <app>          delete app
  logs <app>            print a log session URL for app
  verify <username>     check whether username may deploy
`

// Run executes one command against the server. Results are written to out.
func Run(ctx context.Context, cfg Config, client *Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return Errorf(ExitInvocationFailure, "no command given")
	}

	command := args[0]
	argument := ""
	if len(args) > 1 {
		argument = args[1]
	}

	needsArgument := command != "list"
	if needsArgument && len(argument) == 0 {
		return Errorf(ExitInvocationFailure, "%s needs an argument", command)
	}

	switch command {
	case "deploy":
		return deploy(ctx, cfg, client, argument, out)

	case "list":
		bots, err := client.List(ctx)
		if err != nil {
			return err
		}
		if cfg.JSON {
			return printJSON(out, bots)
		}
		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSTATUS\tROLE\tREPO\tURL")
		for _, bot := range bots {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", bot.Name, bot.Status, bot.Role, bot.Repo, bot.URL)
		}
		return w.Flush()

	case "restart":
		err := client.Restart(ctx, argument)
		if err == nil {
			log.Infof("Restarted %s", argument)
		}
		return err

	case "update-session":
		if len(cfg.SessionID) == 0 {
			return Errorf(ExitInvocationFailure, "--session-id must be set")
		}
		record, err := client.UpdateSession(ctx, argument, cfg.SessionID)
		if err != nil {
			return err
		}
		if cfg.JSON {
			return printJSON(out, record)
		}
		log.Infof("Updated session of %s", record.Name)
		return nil

	case "delete":
		err := client.Delete(ctx, argument)
		if err == nil {
			log.Infof("Deleted %s", argument)
		}
		return err

	case "logs":
		logURL, err := client.LogSession(ctx, argument)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, logURL)
		return nil

	case "verify":
		verified, err := client.Verify(ctx, argument)
		if err != nil {
			return err
		}
		if cfg.JSON {
			return printJSON(out, map[string]interface{}{"username": argument, "verified": verified})
		}
		if !verified {
			return Errorf(ExitNoDeployment, "%s does not own a fork of the upstream repository", argument)
		}
		log.Infof("%s may deploy", argument)
		return nil
	}

	return Errorf(ExitInvocationFailure, "unknown command '%s'", command)
}

func deploy(ctx context.Context, cfg Config, client *Client, appName string, out io.Writer) error {
	if len(cfg.Repo) == 0 {
		return Errorf(ExitInvocationFailure, "--repo must be set")
	}
	if len(cfg.SessionID) == 0 {
		return Errorf(ExitInvocationFailure, "--session-id must be set")
	}

	req := deployer.Request{
		AppName:   appName,
		Repo:      cfg.Repo,
		SessionID: cfg.SessionID,
		Username:  cfg.Username,
	}

	log.Infof("Sending deployment request to %s...", client.Server)

	if cfg.Stream {
		return client.StreamDeploy(ctx, req, func(event StreamEvent) {
			logEvent(event.Step, event.Message)
		})
	}

	response, err := client.Deploy(ctx, req)
	if response != nil {
		for _, event := range response.Events {
			logEvent(event.Step, event.Message)
		}
		if cfg.JSON {
			if perr := printJSON(out, response); perr != nil {
				log.Error(perr)
			}
		} else if err == nil {
			log.Infof("Deployment information:")
			log.Infof("---")
			log.Infof("app..........: %s", response.App)
			log.Infof("url..........: %s", response.URL)
			log.Infof("role.........: %s", response.Role)
			log.Infof("build........: %s", response.BuildID)
			log.Infof("correlation..: %s", response.CorrelationID)
			log.Info("---")
		}
	}
	return err
}

func logEvent(step deployer.Step, message string) {
	fn := log.Infof
	switch step {
	case deployer.StepFailed, deployer.StepTimeout:
		fn = log.Errorf
	}
	fn("[%s] %s", step, message)
}

func printJSON(out io.Writer, v interface{}) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
