package util

import "strings"

const taskDelimiter = "#"

// GetTaskID renders the "pkg#task" identifier for a concrete task instance.
func GetTaskID(pkg, task string) string {
	if IsPackageTask(task) {
		return task
	}
	return pkg + taskDelimiter + task
}

// GetPackageTaskFromID splits a "pkg#task" identifier back into its parts.
// A bare task name (no delimiter) returns ("", task).
func GetPackageTaskFromID(taskID string) (pkg string, task string) {
	if !IsPackageTask(taskID) {
		return "", taskID
	}
	index := strings.Index(taskID, taskDelimiter)
	return taskID[:index], taskID[index+1:]
}

// IsPackageTask reports whether taskID is already in "pkg#task" form.
func IsPackageTask(taskID string) bool {
	return strings.Contains(taskID, taskDelimiter)
}

// StripPackageName returns just the task-name half of a "pkg#task" id.
func StripPackageName(taskID string) string {
	_, task := GetPackageTaskFromID(taskID)
	return task
}

const topologicalPrefix = "^"

// IsTopologicalDependency reports whether a dependsOn entry is of the form
// "^task" (depends on task in every direct in-workspace dependency).
func IsTopologicalDependency(entry string) bool {
	return strings.HasPrefix(entry, topologicalPrefix)
}

// StripTopologicalPrefix removes the leading "^" from a dependsOn entry.
func StripTopologicalPrefix(entry string) string {
	return strings.TrimPrefix(entry, topologicalPrefix)
}
