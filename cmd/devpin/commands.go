package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/yjkwon/devpin/internal/config"
)

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage recorded requirements",
}

func historyListPath(category, query string) string {
	v := url.Values{}
	v.Set("category", category)
	v.Set("q", query)
	return "/history?" + v.Encode()
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded requirements",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		query, _ := cmd.Flags().GetString("search")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), historyListPath(category, query))
		if err != nil {
			return err
		}

		var items []struct {
			ID       string `json:"id"`
			Category string `json:"category"`
			Location string `json:"location"`
			Text     string `json:"text"`
			Priority string `json:"priority"`
			Date     string `json:"date"`
		}
		if err := decodeJSON(resp, &items); err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No requirements recorded.")
			return nil
		}

		for _, item := range items {
			text := item.Text
			if len(text) > 80 {
				text = text[:80] + "..."
			}
			fmt.Printf("%s  %s  [%s] %s  %s\n",
				colorize(colorCyan, item.ID),
				item.Date,
				item.Category,
				colorize(colorBold, item.Priority),
				text,
			)
		}
		return nil
	},
}

var historyAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Record a requirement manually",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		location, _ := cmd.Flags().GetString("location")
		priority, _ := cmd.Flags().GetString("priority")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{
			"text":     strings.Join(args, " "),
			"category": category,
			"location": location,
			"priority": priority,
		}
		resp, err := client.post(cmd.Context(), "/history", body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Requirement recorded")
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a requirement by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/history/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded requirements",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL recorded requirements. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/history")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("History cleared")
		return nil
	},
}

func init() {
	historyListCmd.Flags().String("category", "all", "filter by category")
	historyListCmd.Flags().String("search", "", "keyword to match against text and location")
	historyAddCmd.Flags().String("category", "other", "category: ui, function, style, bug or other")
	historyAddCmd.Flags().String("location", "(no location)", "UI location")
	historyAddCmd.Flags().String("priority", "P1", "priority: P0, P1 or P2")
	historyClearCmd.Flags().Bool("confirm", false, "confirm deletion")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyAddCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyClearCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded requirements as Markdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("requirements_%s.md", time.Now().Format("2006-01-02"))
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/history/export")
		if err != nil {
			return err
		}
		markdown, err := readText(resp)
		if err != nil {
			return err
		}

		if output == "-" {
			fmt.Print(markdown)
			return nil
		}
		if err := os.WriteFile(output, []byte(markdown), 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}

		printSuccess("Exported to %s", output)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: requirements_<date>.md, \"-\" for stdout)")
}

// --- selection ---

var selectionCmd = &cobra.Command{
	Use:   "selection",
	Short: "Manage selected UI locations",
}

var selectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List current selections",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/selection")
		if err != nil {
			return err
		}

		var selections []string
		if err := decodeJSON(resp, &selections); err != nil {
			return err
		}

		if len(selections) == 0 {
			fmt.Println("No selections.")
			return nil
		}
		for i, s := range selections {
			fmt.Printf("%s  %s\n", colorize(colorCyan, fmt.Sprintf("%d", i)), s)
		}
		return nil
	},
}

var selectionRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Remove the selection at index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/selection/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Removed selection %s", args[0])
		return nil
	},
}

var selectionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all selections",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/selection")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Selections cleared")
		return nil
	},
}

func init() {
	selectionCmd.AddCommand(selectionListCmd)
	selectionCmd.AddCommand(selectionRemoveCmd)
	selectionCmd.AddCommand(selectionClearCmd)
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Send feedback and inspect the conversation",
}

var chatSendCmd = &cobra.Command{
	Use:   "send <text>",
	Short: "Send a feedback message and print the rewritten requirement",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"text": strings.Join(args, " ")}
		resp, err := client.post(cmd.Context(), "/chat", body)
		if err != nil {
			return err
		}

		var msg struct {
			Name string `json:"name"`
			Text string `json:"text"`
		}
		if err := decodeJSON(resp, &msg); err != nil {
			return err
		}

		fmt.Printf("%s\n%s\n", colorize(colorBold, msg.Name+":"), msg.Text)
		return nil
	},
}

var chatShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the conversation transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		last, _ := cmd.Flags().GetInt("last")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/chat/transcript?last=%d", last))
		if err != nil {
			return err
		}
		transcript, err := readText(resp)
		if err != nil {
			return err
		}

		if transcript == "" {
			fmt.Println("No messages.")
			return nil
		}
		fmt.Print(transcript)
		return nil
	},
}

var chatAnalyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the last exchange and record it if actionable",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/chat/analyze", map[string]string{})
		if err != nil {
			return err
		}

		var result struct {
			Recorded bool `json:"recorded"`
			Item     struct {
				Category string `json:"category"`
				Text     string `json:"text"`
				Priority string `json:"priority"`
			} `json:"item"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if !result.Recorded {
			fmt.Println("Nothing actionable to record.")
			return nil
		}
		printSuccess("Recorded %s [%s]: %s", result.Item.Priority, result.Item.Category, result.Item.Text)
		return nil
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/chat")
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Conversation cleared")
		return nil
	},
}

func init() {
	chatShowCmd.Flags().Int("last", 2, "show only the trailing N messages")

	chatCmd.AddCommand(chatSendCmd)
	chatCmd.AddCommand(chatShowCmd)
	chatCmd.AddCommand(chatAnalyzeCmd)
	chatCmd.AddCommand(chatClearCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
