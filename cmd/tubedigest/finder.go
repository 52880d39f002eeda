package main

import (
	"github.com/spf13/cobra"

	httpadapter "github.com/Strob0t/tubedigest/internal/adapter/http"
	oteladapter "github.com/Strob0t/tubedigest/internal/adapter/otel"
	"github.com/Strob0t/tubedigest/internal/port/a2a"
	"github.com/Strob0t/tubedigest/internal/service"
)

const agentFinder = "finder"

func finderCmd(cfgPath *string) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "finder",
		Short: "Run the finder agent: lists the video ids of a channel day or playlist",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), *cfgPath, agentFinder, port)
			if err != nil {
				return err
			}
			defer rt.close()

			tools, err := rt.tools()
			if err != nil {
				return err
			}
			finder := service.NewFinderService(tools, service.FinderConfig{
				ChannelTool:  rt.cfg.Finder.ChannelTool,
				PlaylistTool: rt.cfg.Finder.PlaylistTool,
			})
			finder.SetIntentResolver(rt.intents())

			srv := a2a.NewServer(
				oteladapter.Executor(agentFinder, finder, rt.metrics),
				rt.serverConfig(service.FinderCard(version)),
			)
			router := httpadapter.NewRouter(httpadapter.RouterConfig{
				Agent:       agentFinder,
				Credentials: rt.creds,
				AuthSecret:  rt.cfg.Protocol.AuthSecret,
				Tracing:     rt.cfg.OTel.Enabled,
			}, srv)

			return rt.serve(router, srv)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides server.port)")
	return cmd
}
