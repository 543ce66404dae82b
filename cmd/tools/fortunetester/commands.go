package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/uranai/backend/internal/llm"
	chatmodel "github.com/zhouzirui/uranai/backend/internal/model/chat"
	fortunemodel "github.com/zhouzirui/uranai/backend/internal/model/fortune"
	"github.com/zhouzirui/uranai/backend/internal/model/persona"
	chatservice "github.com/zhouzirui/uranai/backend/internal/service/chat"
	"github.com/zhouzirui/uranai/backend/internal/service/fortune"
)

var (
	birthDate    string
	survey       fortunemodel.HealthSurvey
	templatePath string
	rawOutput    bool
	message      string
	personaFile  string
)

var fortuneCmd = &cobra.Command{
	Use:   "fortune",
	Short: "生成一次占卜结果",
	RunE:  runFortune,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "向所有角色依次发送一条消息",
	RunE:  runChat,
}

func init() {
	fortuneCmd.Flags().StringVar(&birthDate, "birth", "", "生日 (YYYY-MM-DD)")
	fortuneCmd.Flags().StringVar(&survey.Sleep, "sleep", "", "睡眠状况")
	fortuneCmd.Flags().StringVar(&survey.Mood, "mood", "", "心情")
	fortuneCmd.Flags().StringVar(&survey.Body, "body", "", "身体状况")
	fortuneCmd.Flags().StringVar(&survey.Stress, "stress", "", "压力")
	fortuneCmd.Flags().StringVar(&templatePath, "template", "", "模板路径，默认使用 PROMPT_TEMPLATE_PATH")
	fortuneCmd.Flags().BoolVar(&rawOutput, "raw", false, "直接输出 JSON")

	chatCmd.Flags().StringVarP(&message, "message", "m", "", "用户消息")
	chatCmd.Flags().StringVar(&personaFile, "personas", "", "角色 YAML 文件，默认使用 PERSONA_FILE 或内置角色")
}

func runFortune(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	kit, err := newToolkit(ctx)
	if err != nil {
		return err
	}

	path := templatePath
	if path == "" {
		path = kit.cfg.Fortune.TemplatePath
	}
	tmpl, err := fortune.LoadTemplate(path)
	if err != nil {
		return err
	}

	health, err := json.Marshal(survey)
	if err != nil {
		return err
	}

	svc := fortune.NewService(kit.ai, tmpl, kit.logger.Named("fortune"))
	fortunes, err := svc.Tell(ctx, fortunemodel.Request{BirthDate: birthDate, Health: health})
	if err != nil {
		return fmt.Errorf("占卜失败 (kind=%s): %w", llm.KindOf(err), err)
	}

	if rawOutput {
		fmt.Println(string(fortunes))
		return nil
	}

	var entries map[string]fortunemodel.Entry
	if err := json.Unmarshal(fortunes, &entries); err != nil {
		// 结构与预期不符时退回原始输出
		fmt.Println(string(fortunes))
		return nil
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := entries[k]
		fmt.Printf("[%s] %s  %s\n  %s\n\n", k, e.Type, e.Luck, e.Result)
	}
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("请通过 --message 提供用户消息")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	kit, err := newToolkit(ctx)
	if err != nil {
		return err
	}

	path := personaFile
	if path == "" {
		path = kit.cfg.Persona.File
	}
	personas := persona.Seed()
	if path != "" {
		if personas, err = persona.LoadFile(path); err != nil {
			return err
		}
	}

	relay := chatservice.NewService(persona.NewMemoryStore(personas), kit.ai, kit.logger.Named("relay"))
	return relay.Relay(ctx, message, func(reply chatmodel.Reply) error {
		_, err := fmt.Fprintf(os.Stdout, "%s (%s)\n%s\n\n", reply.Name, reply.Agent, reply.Message)
		return err
	})
}
