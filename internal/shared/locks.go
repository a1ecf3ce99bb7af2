package shared

import "fmt"

// JobLockKey builds redis keys guarding once-per-scope job runs.
func JobLockKey(task, scope string) string {
	return fmt.Sprintf("veresiye:job:%s:%s:lock", task, scope)
}
