package main

import (
	"context"
	"fmt"
	"text/tabwriter"
)

// report prints the attendance report of the user with the given email.
func (cli *commandLine) report(email string) error {
	ctx := context.Background()
	acc, err := cli.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	rep, err := cli.att.Report(ctx, acc.ID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SUBJECT\tTOTAL\tPRESENT\tABSENT\tLATE\tPERCENT\tSTATUS")
	for _, s := range rep.Subjects {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d%%\t%s\n", s.Subject, s.Total, s.Present, s.Absent, s.Late, s.Percentage, s.Tier)
	}
	st := rep.Stats
	_, _ = fmt.Fprintf(w, "OVERALL\t%d\t%d\t%d\t%d\t%d%%\t\n", st.Total, st.Present, st.Absent, st.Late, st.Percentage)
	if err = w.Flush(); err != nil {
		return err
	}

	for _, s := range rep.Subjects {
		_, _ = fmt.Fprintf(cli.out, "%s: %s\n", s.Subject, s.Message)
	}
	return nil
}
