package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/vims/core"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/services/apiclient"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf     *core.Config
	logger   core.Logger
	out      io.Writer
	pool     *apiclient.Pool
	table    *route.Table
	validate *validator.Validate
	openDB   func(ctx context.Context) (*sql.DB, error)
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                   - run a goose command on the credentials database")
	_, _ = fmt.Fprintln(cli.out, "  purge                                    - delete expired session credentials")
	_, _ = fmt.Fprintln(cli.out, "  routes -role ROLE                        - print the pages and menu of a role")
	_, _ = fmt.Fprintln(cli.out, "  checklogin -email EMAIL [-tenant TENANT] - sign in to the API and print the resolved access")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	routesCmd := flag.NewFlagSet("routes", flag.ContinueOnError)
	routesCmd.SetOutput(cli.out)
	routesRole := routesCmd.String("role", "", "The role, e.g. director.")

	checkLoginCmd := flag.NewFlagSet("checklogin", flag.ContinueOnError)
	checkLoginCmd.SetOutput(cli.out)
	checkLoginEmail := checkLoginCmd.String("email", "", "The user's email. The password will be prompted next.")
	checkLoginTenant := checkLoginCmd.String("tenant", cli.conf.API.DefaultTenant, "The tenant to sign in to.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "purge":
		return cli.purge(ctx)

	case "routes":
		if err := routesCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *routesRole == "" {
			routesCmd.Usage()
			return errHelp
		}
		return cli.routes(*routesRole)

	case "checklogin":
		if err := checkLoginCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *checkLoginEmail == "" || *checkLoginTenant == "" {
			checkLoginCmd.Usage()
			return errHelp
		}
		_, _ = fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		_, _ = fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			checkLoginCmd.Usage()
			return errHelp
		}
		return cli.checkLogin(ctx, *checkLoginTenant, *checkLoginEmail, string(pwd))

	default:
		cli.printUsage()
		return errHelp
	}
}
