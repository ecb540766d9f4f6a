package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/vims/core/auth"
	"github.com/trezcool/vims/core/route"
	"github.com/trezcool/vims/core/session"
	"github.com/trezcool/vims/core/user"
	inmemstore "github.com/trezcool/vims/storage/credentials/inmem"
)

func (cli *commandLine) routes(role string) error {
	if !user.IsKnownRole(role) {
		return fmt.Errorf("unknown role %q", role)
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PATH\tVIEW\tMENU\tPERMISSIONS")
	for _, d := range cli.table.RoutesForRole(role) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", route.RolePath(role, d.Path), d.View, d.Label, strings.Join(d.Permissions, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "landing page: %s\n", route.RolePath(role, cli.table.DefaultPathForRole(role)))
	return nil
}

// checkLogin signs in like the dashboard does, prints what the user gets, then signs out.
func (cli *commandLine) checkLogin(ctx context.Context, tenant, email, pwd string) error {
	provider := session.NewProvider(inmemstore.NewStore(time.Hour), cli.pool, cli.validate, cli.logger, time.Minute, 1)
	sess := provider.Session(uuid.NewString(), tenant)

	p, err := sess.Login(ctx, &auth.LoginForm{Email: email, Password: pwd})
	if err != nil {
		return err
	}
	defer func() { _ = sess.Logout(ctx) }()

	role := p.NormalizedRole()
	_, _ = fmt.Fprintf(cli.out, "signed in to %s as %s (%s)\n", tenant, p.Email, role)
	_, _ = fmt.Fprintf(cli.out, "permissions: %s\n", strings.Join(p.UIPermissions, ","))
	_, _ = fmt.Fprintf(cli.out, "landing page: %s\n", route.RolePath(role, cli.table.DefaultPathForUser(p)))
	for _, item := range cli.table.MenuForUser(p) {
		_, _ = fmt.Fprintf(cli.out, "  %s\t%s\n", item.Label, route.RolePath(role, item.Path))
	}
	return nil
}
