package main

import (
	"fmt"
	"log"

	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/mdouchement/notepad/internal/database"
	"github.com/mdouchement/notepad/internal/model"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
)

// go run tools/rmscope/main.go notepadd.db anon-f2a98ab0-2c40-42b4-be08-da3b771be935

func main() {
	c := &coral.Command{
		Use:   "rmscope",
		Short: "Remove all the rows of an anonymous user from the database",
		Args:  coral.ExactArgs(2),
		RunE: func(_ *coral.Command, args []string) error {
			//
			//
			fmt.Println("Opening", args[0])
			db, err := storm.Open(args[0], database.StormCodec)
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			scope := q.Eq("AnonymousUserID", args[1])

			// Notes are hard deleted, even the soft deleted ones.
			var notes []model.Note
			err = db.Select(scope).Find(&notes)
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "find notes")
			}
			if len(notes) == 0 {
				fmt.Println("No notes for this anonymous user")
			}

			err = db.Select(scope).Delete(&model.Note{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete notes")
			}
			fmt.Printf("%d notes removed\n", len(notes))

			// Devices
			err = db.Select(scope).Delete(&model.Device{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete devices")
			}
			fmt.Println("Devices removed")

			// Sync statuses
			err = db.Select(scope).Delete(&model.SyncStatus{})
			if err != nil && err != storm.ErrNotFound {
				return errors.Wrap(err, "delete sync statuses")
			}
			fmt.Println("Sync statuses removed")

			return nil
		},
	}

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}
