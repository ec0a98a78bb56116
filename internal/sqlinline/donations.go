package sqlinline

const QInsertDonation = `--sql e9f954f4-8138-4736-a42b-2eeedfdd2fee
insert into donations(user_id, comment, full_amount, invested_amount, fully_invested, create_date)
values ($1::text, $2::text, $3::bigint, 0, false, $4::timestamptz)
returning id;
`

// QOpenDonationsForUpdate locks every open donation row until the
// surrounding transaction ends.
const QOpenDonationsForUpdate = `--sql a2f0e3b7-9646-4b33-a3c6-197264bba046
select id, full_amount, invested_amount, fully_invested, create_date, close_date
from donations
where not fully_invested
order by create_date, id
for update;
`

const QOpenDonations = `--sql 02af1944-f757-4571-aa70-fead10141c7c
select id, full_amount, invested_amount, fully_invested, create_date, close_date
from donations
where not fully_invested
order by create_date, id;
`

const QUpdateDonationInvestment = `--sql 29d7c2df-e1d1-4566-adc6-0074b6cf361a
update donations
set invested_amount = $2::bigint, fully_invested = $3::boolean, close_date = $4::timestamptz
where id = $1::bigint;
`

const QListDonations = `--sql f395b6a0-0c6f-4e89-ae00-733add8a3120
select id, user_id, comment, full_amount, invested_amount, fully_invested, create_date, close_date
from donations
order by create_date, id;
`

const QListUserDonations = `--sql 168fc5ae-6a9c-4c34-b0bf-47ab06a3a606
select id, user_id, comment, full_amount, invested_amount, fully_invested, create_date, close_date
from donations
where user_id = $1::text
order by create_date, id;
`
