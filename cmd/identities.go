package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/weave/internal/identity"
	"github.com/danielolaszy/weave/pkg/models"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "Manage the mapping of commit authors to people",
}

var identitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored identity mappings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		mappings, err := st.LoadIdentities(cmd.Context())
		if err != nil {
			return err
		}
		if len(mappings) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No identity mappings")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "AUTHOR\tPERSON\tSOURCE")
		for _, m := range mappings {
			source := "learned"
			if m.Authoritative {
				source = "configured"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.VCSIdentity, m.OrgIdentity, source)
		}
		return w.Flush()
	},
}

var identitiesSetCmd = &cobra.Command{
	Use:   "set AUTHOR PERSON",
	Short: "Set a configured mapping that discovery never overrides",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		m := models.IdentityMapping{VCSIdentity: identity.Normalize(args[0]), OrgIdentity: args[1], Authoritative: true}
		if err := st.SaveIdentities(cmd.Context(), []models.IdentityMapping{m}); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mapped %s to %s\n", m.VCSIdentity, m.OrgIdentity)
		return nil
	},
}

var identitiesDeleteCmd = &cobra.Command{
	Use:   "delete AUTHOR",
	Short: "Delete a stored mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		id := identity.Normalize(args[0])
		if err := st.DeleteIdentity(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete mapping for %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted mapping for %s\n", id)
		return nil
	},
}

func init() {
	identitiesCmd.AddCommand(identitiesListCmd)
	identitiesCmd.AddCommand(identitiesSetCmd)
	identitiesCmd.AddCommand(identitiesDeleteCmd)
}
