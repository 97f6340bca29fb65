// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bensaine/payg-chatgpt/internal/chat"
	"github.com/bensaine/payg-chatgpt/internal/events"
)

type sendOptions struct {
	images       []string
	newChat      bool
	conversation string
	jsonOutput   bool
}

func newSendCommand(a *app) *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send [message...]",
		Short: "Send one message and stream the reply to stdout",
		Long: `Send one message to the active conversation and stream the reply.
With no message arguments the message is read from stdin.`,
		Example: `  payg send "Explain goroutines in one paragraph"
  payg send --new --image diagram.png "What does this show?"
  git diff | payg send --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, a, opts, args)
		},
	}
	cmd.Flags().StringArrayVarP(&opts.images, "image", "i", nil, "attach an image (repeatable)")
	cmd.Flags().BoolVarP(&opts.newChat, "new", "n", false, "start a new conversation")
	cmd.Flags().StringVarP(&opts.conversation, "conversation", "c", "", "conversation number or id to send to")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print session events as JSON lines")
	return cmd
}

func runSend(cmd *cobra.Command, a *app, opts *sendOptions, args []string) error {
	text := strings.Join(args, " ")
	if len(args) == 0 {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return errors.Wrap(err, "failed to read message from stdin")
		}
		text = string(b)
	}

	ctrl, err := a.controller()
	if err != nil {
		return err
	}
	defer ctrl.Close()

	switch {
	case opts.newChat:
		if _, err := ctrl.NewConversation(); err != nil {
			return err
		}
	case opts.conversation != "":
		id, err := a.resolveConversation(opts.conversation)
		if err != nil {
			return err
		}
		if _, err := ctrl.SwitchConversation(id); err != nil {
			return err
		}
	}

	for _, path := range opts.images {
		ok, err := ctrl.Stager().AddFile(path)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("not an image: %s", path)
		}
	}
	if err := ctrl.Stager().Wait(); err != nil {
		return err
	}

	// Events travel through an ordered in-process pub/sub so the printer
	// sees them exactly as the session published them.
	pubsub := events.NewOrderedPubSub()
	defer pubsub.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	messages, err := pubsub.Subscribe(ctx, events.DefaultTopic)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe to session events")
	}
	ctrl.WithSink(events.NewWatermillSink(pubsub, events.DefaultTopic))

	if err := ctrl.Send(ctx, text); err != nil {
		return err
	}

	eg := errgroup.Group{}
	eg.Go(func() error {
		defer cancel()
		return printEvents(messages, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.jsonOutput)
	})
	err = eg.Wait()
	ctrl.Wait()
	return err
}

// printEvents writes the reply as it streams and returns once the request
// is over. A failed or interrupted request is returned as an error.
func printEvents(messages <-chan *message.Message, out, errOut io.Writer, jsonOutput bool) error {
	for msg := range messages {
		e, err := events.Decode(msg.Payload)
		msg.Ack()
		if err != nil {
			log.Warn().Err(err).Msg("skipping undecodable event")
			continue
		}

		if jsonOutput {
			fmt.Fprintln(out, string(msg.Payload))
		} else if e.Type == events.EventTypePartial {
			fmt.Fprint(out, e.Delta)
		}

		switch e.Type {
		case events.EventTypeFinal:
			if !jsonOutput {
				fmt.Fprintln(out)
			}
			return nil
		case events.EventTypeError:
			if !jsonOutput {
				fmt.Fprintln(out)
				fmt.Fprintln(errOut, style(ErrorStyle).Render("[Error: "+e.Error+"]"))
			}
			return errors.Errorf("request failed: %s", e.Error)
		case events.EventTypeInterrupt:
			return chat.ErrInterrupted
		}
	}
	return chat.ErrInterrupted
}
