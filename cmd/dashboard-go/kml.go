package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"indicadores/dashboard-go/internal/kml"
)

func newKMLCmd() *cobra.Command {
	var asGeoJSON bool
	cmd := &cobra.Command{
		Use:   "kml <file.kml>",
		Short: "Parse a KML overlay and list its placemarks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			ld := kml.NewLoader(zerolog.New(io.Discard), os.DirFS(filepath.Dir(path)))
			pms, err := ld.ReadFile(filepath.Base(path))
			if err != nil {
				return err
			}

			if asGeoJSON {
				fc := geojson.NewFeatureCollection()
				for _, pm := range pms {
					f := geojson.NewFeature(pm.Geometry)
					f.Properties["name"] = pm.Name
					if pm.Folder != "" {
						f.Properties["folder"] = pm.Folder
					}
					fc.Append(f)
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(fc)
			}

			for _, pm := range pms {
				folder := pm.Folder
				if folder == "" {
					folder = "-"
				}
				cmd.Println(fmt.Sprintf("%-12s %-30s %s", pm.Geometry.GeoJSONType(), pm.Name, folder))
			}
			cmd.Println(fmt.Sprintf("%d placemarks", len(pms)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asGeoJSON, "geojson", false, "print a GeoJSON FeatureCollection instead of the listing")
	return cmd
}
