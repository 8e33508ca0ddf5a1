package config

type WorkerKeyStruct struct {
	NotificationEmailQueue string
}

var WorkerKey = &WorkerKeyStruct{
	NotificationEmailQueue: "notification_email_queue",
}
