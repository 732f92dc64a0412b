package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"rehla/internal/tree/models"
	treeservice "rehla/internal/tree/service"
)

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile <payload-or-serial>",
		Short: "Print the public profile of a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.printProfile(cmd, args[0])
		},
	}
}

func (a *app) printProfile(cmd *cobra.Command, payload string) error {
	svc, err := a.treeService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	tree, err := svc.Profile(cmd.Context(), payload)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), tree)
}

type submitFlags struct {
	payload      string
	species      string
	plantedAt    string
	latitude     string
	longitude    string
	locationName string
	planterName  string
	notes        string
	photos       []string
}

func (a *app) submitCmd() *cobra.Command {
	var f submitFlags
	cmd := &cobra.Command{
		Use:   "submit [serial]",
		Short: "Register a planted tree with its photos",
		Long: `Register a planted tree in the CMS using the stored login session.

The serial comes from the argument or, when absent, from --payload (a scanned
tag URL or bare serial).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager()
			if err != nil {
				return err
			}
			session, err := m.Current(cmd.Context())
			if err != nil {
				return err
			}

			form, err := f.form()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				form.SerialNumber = args[0]
			} else {
				treeservice.NewBinder(a.extractor(cmd.ErrOrStderr())).Bind(cmd.Context(), &form, f.payload)
			}

			svc, err := a.treeService(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			tree, err := svc.Submit(cmd.Context(), session.Token, form)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tree)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.payload, "payload", "", "scanned tag payload used when no serial is given")
	flags.StringVar(&f.species, "species", "", "tree species")
	flags.StringVar(&f.plantedAt, "planted-at", "", "planting date, YYYY-MM-DD")
	flags.StringVar(&f.latitude, "lat", "", "latitude in degrees")
	flags.StringVar(&f.longitude, "lon", "", "longitude in degrees")
	flags.StringVar(&f.locationName, "location", "", "location name")
	flags.StringVar(&f.planterName, "planter", "", "planter name")
	flags.StringVar(&f.notes, "notes", "", "free text notes")
	flags.StringArrayVar(&f.photos, "photo", nil, "photo file, repeatable")
	return cmd
}

func (f submitFlags) form() (models.Form, error) {
	form := models.Form{
		Species:      f.species,
		PlantedAt:    f.plantedAt,
		LocationName: f.locationName,
		PlanterName:  f.planterName,
		Notes:        f.notes,
	}
	var err error
	if form.Latitude, err = parseCoordinate("lat", f.latitude); err != nil {
		return models.Form{}, err
	}
	if form.Longitude, err = parseCoordinate("lon", f.longitude); err != nil {
		return models.Form{}, err
	}
	for _, path := range f.photos {
		data, err := os.ReadFile(path)
		if err != nil {
			return models.Form{}, fmt.Errorf("read photo: %w", err)
		}
		form.Photos = append(form.Photos, models.PhotoFile{
			Name:        filepath.Base(path),
			ContentType: http.DetectContentType(data),
			Data:        data,
		})
	}
	return form, nil
}

func parseCoordinate(flag, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("--%s must be a number", flag)
	}
	return &v, nil
}
