package billing

import "fmt"

// Key helpers
func quotaKey(userID int64, service Service) string {
	return fmt.Sprintf("quota:%s:%d", service, userID)
}

func passKey(userID int64) string {
	return fmt.Sprintf("pass:%d", userID)
}
