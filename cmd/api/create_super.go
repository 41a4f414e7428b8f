package main

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"

	"github.com/premiumpay/premium-pay-api/internal/services"
	"github.com/spf13/cobra"
)

func newCreateSuperCmd() *cobra.Command {
	var in services.AccountInput
	var imagePath string

	cmd := &cobra.Command{
		Use:   "create-super",
		Short: "Create a super admin and print its credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := fileHeader(imagePath)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			creds, err := a.accounts.Create(cmd.Context(), services.KindSuper, in, image)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loginName:     %s\nloginPassword: %s\n", creds.LoginName, creds.LoginPassword)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.FullName, "full-name", "", "full name")
	cmd.Flags().StringVar(&in.PhoneNumber, "phone", "", "phone number, +998XXXXXXXXX")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to the profile image")
	for _, name := range []string{"full-name", "phone", "email", "image"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

// fileHeader wraps a file on disk in a multipart header so it goes through
// the same upload path as HTTP requests.
func fileHeader(path string) (*multipart.FileHeader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="imageUrl"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", "application/octet-stream")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(int64(len(data)) + 1<<20)
	if err != nil {
		return nil, err
	}
	return form.File["imageUrl"][0], nil
}
