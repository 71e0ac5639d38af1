package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"tractor.dev/nannboy"
	"tractor.dev/nannboy/page"
	"tractor.dev/toolkit-go/engine/cli"
)

func inspectCmd() *cli.Command {
	cmd := &cli.Command{
		Usage: "inspect",
		Short: "show resolved inputs and template problems",
		Args:  cli.ExactArgs(0),
	}
	flags := addBuildFlags(cmd)
	cmd.Run = func(ctx *cli.Context, args []string) {
		p, err := packager(flags)
		fatal(err)
		fatal(inspect(os.Stdout, p))
	}
	return cmd
}

// inspect renders once and reports the inputs, payload and template
// problems from that single read.
func inspect(out io.Writer, p *nannboy.Packager) error {
	_, res, err := p.Render(context.Background())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLE\tPATH\tSIZE\tBLAKE3")
	for _, in := range res.Inputs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", in.Role, in.Path, in.Size, in.Digest[:16])
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\npayload: %d bytes, %d encoded (%s), %d chunks\n",
		res.Payload.Size, res.Payload.Encoded, res.Payload.Compression, res.Payload.Chunks)
	fmt.Fprintf(out, "output:  %s\n", res.Output)

	problems, err := page.Check(string(res.Inputs[0].Data()), p.Config.Elements)
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		fmt.Fprintln(out, "\ntemplate: ok")
		return nil
	}
	fmt.Fprintln(out, "\ntemplate:")
	for _, pr := range problems {
		fmt.Fprintln(out, "  "+pr.String())
	}
	return nil
}
