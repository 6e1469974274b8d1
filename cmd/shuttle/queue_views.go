package main

import (
	"sort"
	"strconv"
	"strings"

	"shuttle/internal/api"
	"shuttle/internal/queue"
)

// statusOrder fixes the row order for the status summary table.
var statusOrder = []string{"pending", "scheduled", "posted", "failed"}

func buildQueueStatusRows(stats map[string]int) [][]string {
	rows := make([][]string, 0, len(stats))
	seen := make(map[string]bool, len(stats))
	for _, status := range statusOrder {
		if count, ok := stats[status]; ok && count > 0 {
			rows = append(rows, []string{status, strconv.Itoa(count)})
			seen[status] = true
		}
	}

	extra := make([]string, 0)
	for status, count := range stats {
		if !seen[status] && count > 0 {
			extra = append(extra, status)
		}
	}
	sort.Strings(extra)
	for _, status := range extra {
		rows = append(rows, []string{status, strconv.Itoa(stats[status])})
	}
	return rows
}

func buildQueueListRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			shortID(item.ID),
			truncate(item.Content, 40),
			strings.Join(item.Platforms, ","),
			item.Status,
			item.ScheduledAt,
			strconv.Itoa(item.Attempts),
		})
	}
	return rows
}

var queueListHeaders = []string{"ID", "Content", "Platforms", "Status", "Scheduled", "Attempts"}

var queueListAligns = []columnAlignment{
	alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight,
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

func statsToStringMap(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}
